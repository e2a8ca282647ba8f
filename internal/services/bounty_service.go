package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"bounty-board/internal/auth"
	"bounty-board/internal/models"
	"bounty-board/internal/repository"
	"bounty-board/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BountyService enforces the bounty lifecycle: creation validation,
// ownership-gated mutation, and the open->closed transition. It is the only
// writer of a bounty's status.
type BountyService struct {
	store    repository.BountyStore
	verifier PaymentVerifier
}

func NewBountyService(store repository.BountyStore, verifier PaymentVerifier) *BountyService {
	return &BountyService{
		store:    store,
		verifier: verifier,
	}
}

// Create validates and stores a new bounty. Status always starts open.
func (s *BountyService) Create(ctx context.Context, req *models.CreateBountyRequest, identity auth.Identity) (*models.Bounty, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" {
		return nil, validationErrorf("title must not be empty")
	}
	if description == "" {
		return nil, validationErrorf("description must not be empty")
	}

	amount, err := parseUsdcAmount(req.UsdcAmount)
	if err != nil {
		return nil, err
	}

	discordHandle := strings.TrimSpace(req.DiscordHandle)
	farcasterHandle := strings.TrimSpace(req.FarcasterHandle)

	// An identity-authenticated caller who supplied no contact gets their
	// own handle as the contact and ownership key.
	creatorAddress := identity.WalletAddress
	if creatorAddress == "" && identity.FarcasterHandle != "" &&
		discordHandle == "" && farcasterHandle == "" {
		farcasterHandle = identity.FarcasterHandle
	}
	if creatorAddress == "" {
		creatorAddress = strings.TrimSpace(req.CreatorAddress)
	}
	if creatorAddress == models.ExternalCreatorAddress {
		return nil, validationErrorf("creatorAddress %q is reserved", models.ExternalCreatorAddress)
	}

	if err := validateContact(discordHandle, farcasterHandle); err != nil {
		return nil, err
	}

	if req.Deadline != nil && !req.Deadline.After(time.Now()) {
		return nil, validationErrorf("deadline must be in the future")
	}

	managementURL, err := utils.GenerateManagementToken()
	if err != nil {
		return nil, err
	}

	bounty := &models.Bounty{
		ID:              uuid.New(),
		Title:           title,
		Description:     description,
		UsdcAmount:      amount,
		DiscordHandle:   discordHandle,
		FarcasterHandle: farcasterHandle,
		Status:          models.BountyStatusOpen,
		Deadline:        req.Deadline,
		ManagementURL:   managementURL,
		CreatorAddress:  creatorAddress,
	}

	if err := s.store.Insert(ctx, bounty); err != nil {
		return nil, err
	}

	log.Printf("Bounty created: %s (%s USDC)", bounty.Title, bounty.UsdcAmount.StringFixed(2))
	return bounty, nil
}

// Update applies a partial field patch to an owned bounty. Touched fields are
// re-validated under the creation rules. Status is never writable here.
func (s *BountyService) Update(ctx context.Context, id uuid.UUID, req *models.UpdateBountyRequest, identity auth.Identity) (*models.Bounty, error) {
	bounty, err := s.loadOwned(ctx, id, identity, req.ManagementToken)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, validationErrorf("title must not be empty")
		}
		fields["title"] = title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			return nil, validationErrorf("description must not be empty")
		}
		fields["description"] = description
	}
	if req.UsdcAmount != nil {
		amount, err := parseUsdcAmount(*req.UsdcAmount)
		if err != nil {
			return nil, err
		}
		fields["usdc_amount"] = amount
	}

	if req.DiscordHandle != nil || req.FarcasterHandle != nil {
		discordHandle := bounty.DiscordHandle
		farcasterHandle := bounty.FarcasterHandle
		if req.DiscordHandle != nil {
			discordHandle = strings.TrimSpace(*req.DiscordHandle)
		}
		if req.FarcasterHandle != nil {
			farcasterHandle = strings.TrimSpace(*req.FarcasterHandle)
		}
		if err := validateContact(discordHandle, farcasterHandle); err != nil {
			return nil, err
		}
		fields["discord_handle"] = discordHandle
		fields["farcaster_handle"] = farcasterHandle
	}

	if req.Deadline != nil {
		if !req.Deadline.After(time.Now()) {
			return nil, validationErrorf("deadline must be in the future")
		}
		fields["deadline"] = *req.Deadline
	}

	if err := s.store.UpdateFields(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Bounty not found"}
		}
		return nil, err
	}

	return s.Get(ctx, id)
}

// Close records the payment claim and transitions the bounty to closed. The
// transition happens at most once; a second attempt never overwrites the
// recipient recorded by the first.
func (s *BountyService) Close(ctx context.Context, id uuid.UUID, req *models.CloseBountyRequest, identity auth.Identity) (*models.Bounty, error) {
	if req.Status != string(models.BountyStatusClosed) {
		return nil, validationErrorf("status must be %q", models.BountyStatusClosed)
	}

	bounty, err := s.loadOwned(ctx, id, identity, req.ManagementToken)
	if err != nil {
		return nil, err
	}

	if bounty.Status == models.BountyStatusClosed {
		return nil, &ConflictError{Message: "Bounty is already closed"}
	}

	recipient := strings.TrimSpace(req.RecipientAddress)
	if err := s.verifier.Verify(ctx, bounty, recipient, req.TxSignature); err != nil {
		return nil, err
	}

	closed, err := s.store.CloseIfOpen(ctx, id, recipient)
	if err != nil {
		return nil, err
	}
	if !closed {
		// Lost the race against a concurrent close.
		return nil, &ConflictError{Message: "Bounty is already closed"}
	}

	if recipient != "" {
		log.Printf("Bounty closed: %s, recipient %s", bounty.Title, recipient)
	} else {
		log.Printf("Bounty closed: %s, no recipient recorded", bounty.Title)
	}
	return s.Get(ctx, id)
}

// Delete permanently removes an owned bounty
func (s *BountyService) Delete(ctx context.Context, id uuid.UUID, identity auth.Identity, managementToken string) error {
	if _, err := s.loadOwned(ctx, id, identity, managementToken); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Message: "Bounty not found"}
		}
		return err
	}
	return nil
}

// Get retrieves a single bounty by id
func (s *BountyService) Get(ctx context.Context, id uuid.UUID) (*models.Bounty, error) {
	bounty, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Bounty not found"}
	}
	return bounty, err
}

// GetByManagementURL retrieves a bounty through its capability token
func (s *BountyService) GetByManagementURL(ctx context.Context, url string) (*models.Bounty, error) {
	bounty, err := s.store.GetByManagementURL(ctx, url)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Bounty not found"}
	}
	return bounty, err
}

// List retrieves all bounties, newest first
func (s *BountyService) List(ctx context.Context) ([]models.Bounty, error) {
	return s.store.ListAll(ctx)
}

// loadOwned fetches the bounty and re-checks ownership against the current
// store state. Every mutating operation goes through this, so an ownership
// decision is never inferred from an earlier read.
func (s *BountyService) loadOwned(ctx context.Context, id uuid.UUID, identity auth.Identity, managementToken string) (*models.Bounty, error) {
	bounty, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Bounty not found"}
	}
	if err != nil {
		return nil, err
	}

	if !ownsBounty(bounty, identity, managementToken) {
		return nil, &AuthorizationError{Message: "Not authorized to modify this bounty"}
	}
	return bounty, nil
}

// ownsBounty is the single ownership predicate. The management token is a
// bearer capability and proves ownership on its own; it is the only mutation
// path for a bounty created without a wallet or farcaster identity. Otherwise
// the caller's wallet address must match the stored creator, or the caller's
// farcaster handle must match the stored one (case-sensitive on the full
// @handle string). Externally ingested bounties carry a sentinel creator and
// are never ownable, token or not.
func ownsBounty(b *models.Bounty, identity auth.Identity, managementToken string) bool {
	if b.IsExternal() {
		return false
	}
	if managementToken != "" && managementToken == b.ManagementURL {
		return true
	}
	if identity.IsAnonymous() {
		return false
	}
	if identity.WalletAddress != "" && b.CreatorAddress != "" &&
		identity.WalletAddress == b.CreatorAddress {
		return true
	}
	if identity.FarcasterHandle != "" && b.FarcasterHandle != "" &&
		identity.FarcasterHandle == b.FarcasterHandle {
		return true
	}
	return false
}

func parseUsdcAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, validationErrorf("usdcAmount must be a decimal number")
	}
	if amount.IsNegative() {
		return decimal.Zero, validationErrorf("usdcAmount must not be negative")
	}
	if amount.Exponent() < -2 {
		return decimal.Zero, validationErrorf("usdcAmount must have at most 2 decimal places")
	}
	return amount, nil
}

func validateContact(discordHandle, farcasterHandle string) error {
	if discordHandle == "" && farcasterHandle == "" {
		return validationErrorf("a discord or farcaster handle is required")
	}
	if discordHandle != "" && farcasterHandle != "" {
		return validationErrorf("supply exactly one of discordHandle and farcasterHandle")
	}
	// Users must not be able to forge external provenance.
	if strings.HasPrefix(discordHandle, models.ExternalHandlePrefix) ||
		strings.HasPrefix(farcasterHandle, models.ExternalHandlePrefix) {
		return validationErrorf("contact handle must not use the reserved %q prefix", models.ExternalHandlePrefix)
	}
	return nil
}
