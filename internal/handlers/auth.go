package handlers

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"

	"bounty-board/internal/auth"
)

// loginMessage is the fixed message wallets sign to prove key ownership.
const loginMessage = "Sign this message to authenticate with the bounty board"

// AuthHandler handles authentication endpoints
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// WalletLogin authenticates a caller by wallet signature and issues a JWT
// carrying their wallet address.
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if len(req.WalletAddress) < 32 || len(req.WalletAddress) > 44 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid wallet address"})
		return
	}

	pubKey, err := base58.Decode(req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid public key format"})
		return
	}

	// Wallets return the signature as base58 or hex depending on the client.
	sig, err := base58.Decode(req.Signature)
	if err != nil {
		sig, err = hex.DecodeString(req.Signature)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid signature format"})
			return
		}
	}

	if len(pubKey) != ed25519.PublicKeySize || !ed25519.Verify(pubKey, []byte(loginMessage), sig) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid signature"})
		return
	}

	token, err := auth.GenerateToken(auth.Identity{WalletAddress: req.WalletAddress})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":          token,
		"wallet_address": req.WalletAddress,
	})
}

// GetMe echoes the identity carried by the presented token
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	identity := auth.IdentityFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"wallet_address":   identity.WalletAddress,
		"farcaster_handle": identity.FarcasterHandle,
	})
}
