package repository

import (
	"context"
	"errors"
	"time"

	"bounty-board/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no bounty matches the lookup
	ErrNotFound = errors.New("bounty not found")

	// ErrDuplicate is returned when an insert hits a uniqueness constraint
	ErrDuplicate = errors.New("duplicate bounty")
)

// BountyStore is the persistence boundary for bounties. The lifecycle and
// sync engines only ever talk to this interface, so tests can run against
// an in-memory database instead of postgres.
type BountyStore interface {
	Insert(ctx context.Context, bounty *models.Bounty) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bounty, error)
	GetByManagementURL(ctx context.Context, url string) (*models.Bounty, error)
	ListAll(ctx context.Context) ([]models.Bounty, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	CloseIfOpen(ctx context.Context, id uuid.UUID, recipientAddress string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByTitleAndHandle(ctx context.Context, title, handle string) (*models.Bounty, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert creates a new bounty row
func (r *Repository) Insert(ctx context.Context, bounty *models.Bounty) error {
	err := r.db.WithContext(ctx).Create(bounty).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// GetByID retrieves a bounty by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bounty, error) {
	var bounty models.Bounty
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&bounty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

// GetByManagementURL retrieves a bounty by its capability token
func (r *Repository) GetByManagementURL(ctx context.Context, url string) (*models.Bounty, error) {
	var bounty models.Bounty
	err := r.db.WithContext(ctx).Where("management_url = ?", url).First(&bounty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}

// ListAll retrieves all bounties, newest first
func (r *Repository) ListAll(ctx context.Context) ([]models.Bounty, error) {
	var bounties []models.Bounty
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&bounties).Error
	if err != nil {
		return nil, err
	}
	return bounties, nil
}

// UpdateFields applies a partial column patch and bumps updated_at
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseIfOpen transitions a bounty to closed and records the recipient, but
// only if it is still open. Returns false when the row was already closed,
// so concurrent close attempts cannot overwrite each other's recipient.
func (r *Repository) CloseIfOpen(ctx context.Context, id uuid.UUID, recipientAddress string) (bool, error) {
	// An empty claim leaves recipient_address NULL rather than "".
	var recipient interface{}
	if recipientAddress != "" {
		recipient = recipientAddress
	}

	result := r.db.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ? AND status = ?", id, models.BountyStatusOpen).
		Updates(map[string]interface{}{
			"status":            models.BountyStatusClosed,
			"recipient_address": recipient,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete permanently removes a bounty. No tombstone is kept.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Bounty{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByTitleAndHandle looks up a bounty by the sync dedup key
func (r *Repository) FindByTitleAndHandle(ctx context.Context, title, handle string) (*models.Bounty, error) {
	var bounty models.Bounty
	err := r.db.WithContext(ctx).
		Where("title = ? AND discord_handle = ?", title, handle).
		First(&bounty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bounty, nil
}
