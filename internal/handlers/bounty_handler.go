package handlers

import (
	"errors"
	"log"
	"net/http"

	"bounty-board/internal/auth"
	"bounty-board/internal/models"
	"bounty-board/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BountyHandler struct {
	bountyService *services.BountyService
	syncService   *services.SyncService
}

func NewBountyHandler(bountyService *services.BountyService, syncService *services.SyncService) *BountyHandler {
	return &BountyHandler{
		bountyService: bountyService,
		syncService:   syncService,
	}
}

// ListBounties returns all bounties, newest first
// GET /api/bounties
func (h *BountyHandler) ListBounties(c *gin.Context) {
	bounties, err := h.bountyService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bounties)
}

// GetBounty returns a single bounty
// GET /api/bounties/:id
func (h *BountyHandler) GetBounty(c *gin.Context) {
	id, ok := parseBountyID(c)
	if !ok {
		return
	}

	bounty, err := h.bountyService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bounty)
}

// GetBountyByManagementURL returns a bounty through its capability token
// GET /api/bounties/manage/:url
func (h *BountyHandler) GetBountyByManagementURL(c *gin.Context) {
	bounty, err := h.bountyService.GetByManagementURL(c.Request.Context(), c.Param("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bounty)
}

// CreateBounty posts a new bounty
// POST /api/bounties
func (h *BountyHandler) CreateBounty(c *gin.Context) {
	var req models.CreateBountyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid bounty data", "error": err.Error()})
		return
	}

	bounty, err := h.bountyService.Create(c.Request.Context(), &req, auth.IdentityFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bounty)
}

// UpdateBounty applies a partial field patch to an owned bounty
// PATCH /api/bounties/:id
func (h *BountyHandler) UpdateBounty(c *gin.Context) {
	id, ok := parseBountyID(c)
	if !ok {
		return
	}

	var req models.UpdateBountyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid bounty data", "error": err.Error()})
		return
	}

	bounty, err := h.bountyService.Update(c.Request.Context(), id, &req, callerIdentity(c, req.CreatorAddress))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bounty)
}

// CloseBounty records the payment claim and closes the bounty
// PATCH /api/bounties/:id/status
func (h *BountyHandler) CloseBounty(c *gin.Context) {
	id, ok := parseBountyID(c)
	if !ok {
		return
	}

	var req models.CloseBountyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status data", "error": err.Error()})
		return
	}

	bounty, err := h.bountyService.Close(c.Request.Context(), id, &req, callerIdentity(c, req.CreatorAddress))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bounty)
}

// DeleteBounty permanently removes an owned bounty
// DELETE /api/bounties/:id
func (h *BountyHandler) DeleteBounty(c *gin.Context) {
	id, ok := parseBountyID(c)
	if !ok {
		return
	}

	// The ownership claims may ride in an optional JSON body.
	var req models.DeleteBountyRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.bountyService.Delete(c.Request.Context(), id, callerIdentity(c, req.CreatorAddress), req.ManagementToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bounty deleted successfully"})
}

// TriggerSync runs one ingestion pass immediately
// POST /api/bounties/sync
func (h *BountyHandler) TriggerSync(c *gin.Context) {
	report, err := h.syncService.Run(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// callerIdentity resolves the caller's identity: the JWT identity when a
// token was presented, otherwise the body-supplied wallet claim. A farcaster
// identity is only ever trusted out of a token.
func callerIdentity(c *gin.Context, claimedAddress string) auth.Identity {
	identity := auth.IdentityFromContext(c)
	if identity.IsAnonymous() && claimedAddress != "" {
		identity.WalletAddress = claimedAddress
	}
	return identity
}

func parseBountyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Bounty not found"})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError
	var authErr *services.AuthorizationError
	var conflictErr *services.ConflictError
	var fetchErr *services.UpstreamFetchError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": validationErr.Message})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"message": notFoundErr.Message})
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"message": authErr.Message})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"message": conflictErr.Message})
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch external bounties"})
	default:
		log.Printf("Unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
	}
}
