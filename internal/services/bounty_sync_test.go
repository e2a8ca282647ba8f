package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bounty-board/internal/bountycaster"
	"bounty-board/internal/models"
	"bounty-board/internal/repository"

	"gorm.io/gorm"
)

func newSyncService(t *testing.T, db *gorm.DB, serverURL string) *SyncService {
	t.Helper()
	repo := repository.NewRepository(db)
	client := bountycaster.NewClient(serverURL, 5*time.Second)
	return NewSyncService(repo, client, "@ns")
}

func stubBoard(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/bounties/open" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

const boardPayload = `[
	{"title": "Build the widget", "summary": "A widget", "amount_usd": 120.5, "short_name": "alice", "tags": ["@NS", "dev"]},
	{"title": "Write the docs", "summary": "Docs", "short_name": "bob", "tags": ["@ns"], "deadline": "2031-01-02T15:04:05Z"},
	{"title": "Unrelated thing", "summary": "Other community", "amount_usd": 10, "short_name": "carol", "tags": ["@elsewhere"]}
]`

func TestSyncRun(t *testing.T) {
	db := setupTestDB(t)
	server := stubBoard(t, boardPayload)
	svc := newSyncService(t, db, server.URL)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if report.Matched != 2 {
		t.Errorf("expected 2 matched records, got %d", report.Matched)
	}
	if report.Synced != 2 || report.Skipped != 0 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	var bounty models.Bounty
	if err := db.Where("title = ?", "Build the widget").First(&bounty).Error; err != nil {
		t.Fatalf("synced bounty missing: %v", err)
	}
	if bounty.DiscordHandle != "bountycaster:alice" {
		t.Errorf("expected provenance-tagged handle, got %q", bounty.DiscordHandle)
	}
	if bounty.CreatorAddress != models.ExternalCreatorAddress {
		t.Errorf("expected sentinel creator, got %q", bounty.CreatorAddress)
	}
	if bounty.Status != models.BountyStatusOpen {
		t.Errorf("expected open status, got %s", bounty.Status)
	}
	if !strings.HasPrefix(bounty.ManagementURL, "bountycaster-") {
		t.Errorf("expected bountycaster-prefixed management URL, got %q", bounty.ManagementURL)
	}
	if !bounty.UsdcAmount.Equal(decimalFromString(t, "120.50")) {
		t.Errorf("expected amount 120.50, got %s", bounty.UsdcAmount)
	}

	// Missing amount defaults to zero.
	var docs models.Bounty
	if err := db.Where("title = ?", "Write the docs").First(&docs).Error; err != nil {
		t.Fatalf("synced bounty missing: %v", err)
	}
	if !docs.UsdcAmount.IsZero() {
		t.Errorf("expected zero amount, got %s", docs.UsdcAmount)
	}
	if docs.Deadline == nil {
		t.Error("expected deadline to be carried over")
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	server := stubBoard(t, boardPayload)
	svc := newSyncService(t, db, server.URL)
	ctx := context.Background()

	if _, err := svc.Run(ctx); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	report, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if report.Synced != 0 {
		t.Errorf("expected no new insertions on second run, got %d", report.Synced)
	}
	if report.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", report.Skipped)
	}

	var count int64
	db.Model(&models.Bounty{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 bounties after two runs, got %d", count)
	}
}

func TestSyncDedupsWithinBatch(t *testing.T) {
	db := setupTestDB(t)
	payload := `[
		{"title": "Same task", "summary": "first copy", "amount_usd": 5, "short_name": "alice", "tags": ["@ns"]},
		{"title": "Same task", "summary": "second copy", "amount_usd": 5, "short_name": "alice", "tags": ["@ns"]}
	]`
	server := stubBoard(t, payload)
	svc := newSyncService(t, db, server.URL)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Synced != 1 || report.Skipped != 1 {
		t.Errorf("expected exactly one insert and one skip, got %+v", report)
	}

	var count int64
	db.Model(&models.Bounty{}).Where("title = ?", "Same task").Count(&count)
	if count != 1 {
		t.Errorf("expected 1 bounty, got %d", count)
	}
}

func TestSyncPerItemFailureContinues(t *testing.T) {
	db := setupTestDB(t)
	payload := `[
		{"title": "No poster", "summary": "broken record", "tags": ["@ns"]},
		{"title": "Bad deadline", "summary": "broken too", "short_name": "dave", "deadline": "tomorrow", "tags": ["@ns"]},
		{"title": "Good one", "summary": "fine", "short_name": "erin", "tags": ["@ns"]}
	]`
	server := stubBoard(t, payload)
	svc := newSyncService(t, db, server.URL)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Failed != 2 {
		t.Errorf("expected 2 failed items, got %d", report.Failed)
	}
	if report.Synced != 1 {
		t.Errorf("expected the good record to be inserted, got %d", report.Synced)
	}
	for _, item := range report.Items {
		if item.Outcome == SyncOutcomeError && item.Reason == "" {
			t.Errorf("error item %q has no reason", item.Title)
		}
	}
}

func TestSyncFetchFailureAbortsRun(t *testing.T) {
	db := setupTestDB(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	svc := newSyncService(t, db, server.URL)

	_, err := svc.Run(context.Background())
	var fetchErr *UpstreamFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected UpstreamFetchError, got %v", err)
	}

	var count int64
	db.Model(&models.Bounty{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no partial inserts, got %d rows", count)
	}
}

func TestSyncAcceptsWrappedEnvelope(t *testing.T) {
	db := setupTestDB(t)
	payload := `{"bounties": [
		{"title": "Wrapped record", "summary": "envelope shape", "amount_usd": 1, "short_name": "fred", "tags": ["@ns"]}
	]}`
	server := stubBoard(t, payload)
	svc := newSyncService(t, db, server.URL)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Synced != 1 {
		t.Errorf("expected 1 synced from wrapped envelope, got %d", report.Synced)
	}
}

func TestSyncSummaryFallbackFilter(t *testing.T) {
	db := setupTestDB(t)
	payload := `[
		{"title": "Untagged but relevant", "summary": "help the @NS community", "short_name": "gina"},
		{"title": "Untagged and irrelevant", "summary": "nothing to see", "short_name": "hank"}
	]`
	server := stubBoard(t, payload)
	svc := newSyncService(t, db, server.URL)

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Matched != 1 {
		t.Errorf("expected 1 matched via summary fallback, got %d", report.Matched)
	}
}
