package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bounty-board/internal/bountycaster"
	"bounty-board/internal/models"
	"bounty-board/internal/repository"
	"bounty-board/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomeSkipped SyncOutcome = "skipped"
	SyncOutcomeError   SyncOutcome = "error"
)

// SyncItem is the per-record outcome of a sync run
type SyncItem struct {
	Title   string      `json:"title"`
	Outcome SyncOutcome `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
}

// SyncReport summarizes one ingestion run
type SyncReport struct {
	Matched int        `json:"matched"`
	Synced  int        `json:"synced"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
	Items   []SyncItem `json:"items"`
}

// SyncService pulls open bounties from the external board, keeps the ones
// tagged for this community, and inserts the ones not already present.
type SyncService struct {
	store  repository.BountyStore
	client *bountycaster.Client
	tag    string
}

func NewSyncService(store repository.BountyStore, client *bountycaster.Client, communityTag string) *SyncService {
	return &SyncService{
		store:  store,
		client: client,
		tag:    communityTag,
	}
}

// Run executes one full ingestion pass. A fetch failure aborts the run and
// returns an UpstreamFetchError; per-item failures are recorded in the
// report and never stop the loop.
func (s *SyncService) Run(ctx context.Context) (*SyncReport, error) {
	log.Println("Starting bounty sync from Bountycaster...")

	external, err := s.client.FetchOpenBounties(ctx)
	if err != nil {
		return nil, &UpstreamFetchError{Err: err}
	}

	var matched []bountycaster.Bounty
	for _, rec := range external {
		if rec.MatchesTag(s.tag) {
			matched = append(matched, rec)
		}
	}

	log.Printf("Found %d %s bounties to sync", len(matched), s.tag)

	report := &SyncReport{Matched: len(matched)}
	for _, rec := range matched {
		report.Items = append(report.Items, s.syncOne(ctx, rec))
	}

	for _, item := range report.Items {
		switch item.Outcome {
		case SyncOutcomeSuccess:
			report.Synced++
		case SyncOutcomeSkipped:
			report.Skipped++
		case SyncOutcomeError:
			report.Failed++
		}
	}

	log.Printf("Bounty sync completed: %d synced, %d skipped, %d failed",
		report.Synced, report.Skipped, report.Failed)
	return report, nil
}

func (s *SyncService) syncOne(ctx context.Context, rec bountycaster.Bounty) SyncItem {
	bounty, err := mapExternalBounty(rec)
	if err != nil {
		log.Printf("Failed to map external bounty %q: %v", rec.Title, err)
		return SyncItem{Title: rec.Title, Outcome: SyncOutcomeError, Reason: err.Error()}
	}

	existing, err := s.store.FindByTitleAndHandle(ctx, bounty.Title, bounty.DiscordHandle)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Printf("Failed to check for existing bounty %q: %v", bounty.Title, err)
		return SyncItem{Title: bounty.Title, Outcome: SyncOutcomeError, Reason: err.Error()}
	}
	if existing != nil {
		return SyncItem{Title: bounty.Title, Outcome: SyncOutcomeSkipped, Reason: "already synced"}
	}

	if err := s.store.Insert(ctx, bounty); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Another writer got there first; the unique index on
			// (title, handle) backstops the dedup check.
			return SyncItem{Title: bounty.Title, Outcome: SyncOutcomeSkipped, Reason: "already synced"}
		}
		log.Printf("Failed to insert synced bounty %q: %v", bounty.Title, err)
		return SyncItem{Title: bounty.Title, Outcome: SyncOutcomeError, Reason: err.Error()}
	}

	log.Printf("Synced bounty: %s", bounty.Title)
	return SyncItem{Title: bounty.Title, Outcome: SyncOutcomeSuccess}
}

// mapExternalBounty converts an external record into the local schema. The
// contact handle carries the provenance prefix and the creator address is
// the sentinel, so ingested bounties can never be mutated or closed.
func mapExternalBounty(rec bountycaster.Bounty) (*models.Bounty, error) {
	if rec.Title == "" {
		return nil, &MappingError{Title: rec.Title, Err: fmt.Errorf("missing title")}
	}
	if rec.ShortName == "" {
		return nil, &MappingError{Title: rec.Title, Err: fmt.Errorf("missing short_name")}
	}

	amount := decimal.Zero
	if rec.AmountUSD != nil {
		amount = decimal.NewFromFloat(*rec.AmountUSD).Round(2)
		if amount.IsNegative() {
			return nil, &MappingError{Title: rec.Title, Err: fmt.Errorf("negative amount_usd")}
		}
	}

	var deadline *time.Time
	if rec.Deadline != "" {
		parsed, err := time.Parse(time.RFC3339, rec.Deadline)
		if err != nil {
			return nil, &MappingError{Title: rec.Title, Err: fmt.Errorf("invalid deadline: %w", err)}
		}
		deadline = &parsed
	}

	token, err := utils.GenerateManagementToken()
	if err != nil {
		return nil, &MappingError{Title: rec.Title, Err: err}
	}

	return &models.Bounty{
		ID:             uuid.New(),
		Title:          rec.Title,
		Description:    rec.Summary,
		UsdcAmount:     amount,
		DiscordHandle:  models.ExternalHandlePrefix + rec.ShortName,
		Status:         models.BountyStatusOpen,
		Deadline:       deadline,
		ManagementURL:  "bountycaster-" + token,
		CreatorAddress: models.ExternalCreatorAddress,
	}, nil
}
