package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BountyStatus string

const (
	BountyStatusOpen   BountyStatus = "open"
	BountyStatusClosed BountyStatus = "closed"
)

const (
	// ExternalCreatorAddress marks bounties ingested from an external board.
	// It never matches a real wallet, so these rows cannot be mutated or
	// closed through the ownership path.
	ExternalCreatorAddress = "0x0"

	// ExternalHandlePrefix tags the contact handle of ingested bounties so
	// they are distinguishable from user-created ones during dedup.
	ExternalHandlePrefix = "bountycaster:"
)

// Bounty represents a posted task with a USDC reward
type Bounty struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string          `gorm:"size:500;not null;uniqueIndex:idx_bounties_title_handle,where:discord_handle LIKE 'bountycaster:%'" json:"title"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	UsdcAmount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"usdcAmount"`
	DiscordHandle    string          `gorm:"size:255;uniqueIndex:idx_bounties_title_handle" json:"discordHandle,omitempty"`
	FarcasterHandle  string          `gorm:"size:255" json:"farcasterHandle,omitempty"`
	Status           BountyStatus    `gorm:"size:20;not null;default:open;index" json:"status"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	ManagementURL    string          `gorm:"size:128;not null;uniqueIndex" json:"managementUrl"`
	CreatorAddress   string          `gorm:"size:255" json:"creatorAddress,omitempty"`
	RecipientAddress *string         `gorm:"size:255" json:"recipientAddress,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (Bounty) TableName() string {
	return "bounties"
}

// ContactHandle returns whichever contact handle is set.
func (b *Bounty) ContactHandle() string {
	if b.DiscordHandle != "" {
		return b.DiscordHandle
	}
	return b.FarcasterHandle
}

// IsExternal reports whether the bounty was ingested from the external board.
func (b *Bounty) IsExternal() bool {
	return b.CreatorAddress == ExternalCreatorAddress ||
		strings.HasPrefix(b.DiscordHandle, ExternalHandlePrefix) ||
		strings.HasPrefix(b.FarcasterHandle, ExternalHandlePrefix)
}

// CreateBountyRequest represents a request to post a new bounty
type CreateBountyRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description" binding:"required"`
	UsdcAmount      string     `json:"usdcAmount" binding:"required"`
	DiscordHandle   string     `json:"discordHandle"`
	FarcasterHandle string     `json:"farcasterHandle"`
	Deadline        *time.Time `json:"deadline"`
	CreatorAddress  string     `json:"creatorAddress"`
}

// UpdateBountyRequest carries a partial field patch. Nil fields are left
// untouched. Status is deliberately absent; status changes go through the
// close operation only.
type UpdateBountyRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	UsdcAmount      *string    `json:"usdcAmount"`
	DiscordHandle   *string    `json:"discordHandle"`
	FarcasterHandle *string    `json:"farcasterHandle"`
	Deadline        *time.Time `json:"deadline"`
	CreatorAddress  string     `json:"creatorAddress"`
	ManagementToken string     `json:"managementToken"`
}

// CloseBountyRequest records the payment claim that closes a bounty
type CloseBountyRequest struct {
	Status           string `json:"status" binding:"required"`
	RecipientAddress string `json:"recipientAddress"`
	TxSignature      string `json:"txSignature"`
	CreatorAddress   string `json:"creatorAddress"`
	ManagementToken  string `json:"managementToken"`
}

// DeleteBountyRequest carries the optional body-supplied ownership claims
type DeleteBountyRequest struct {
	CreatorAddress  string `json:"creatorAddress"`
	ManagementToken string `json:"managementToken"`
}
