package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Authorization header required",
			})
			c.Abort()
			return
		}

		identity, ok := identityFromHeader(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// OptionalAuthMiddleware extracts the caller identity when a bearer token is
// present but lets anonymous requests through. Bounty mutation routes use
// this: anonymous callers can still prove ownership through a body-supplied
// wallet address, which the service layer checks either way.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		identity, ok := identityFromHeader(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFromHeader(authHeader string) (Identity, bool) {
	// Extract token from "Bearer <token>" format
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Identity{}, false
	}

	claims, err := ValidateToken(parts[1])
	if err != nil {
		return Identity{}, false
	}

	return Identity{
		WalletAddress:   claims.WalletAddress,
		FarcasterHandle: claims.FarcasterHandle,
	}, true
}

// IdentityFromContext retrieves the caller identity set by the middleware.
// Returns the anonymous identity when no token was presented.
func IdentityFromContext(c *gin.Context) Identity {
	value, exists := c.Get(identityKey)
	if !exists {
		return Identity{}
	}

	identity, ok := value.(Identity)
	if !ok {
		return Identity{}
	}
	return identity
}
