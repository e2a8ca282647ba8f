package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bounty-board/internal/auth"
	"bounty-board/internal/bountycaster"
	"bounty-board/internal/models"
	"bounty-board/internal/repository"
	"bounty-board/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("test-secret")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&models.Bounty{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	repo := repository.NewRepository(db)
	bountyService := services.NewBountyService(repo, services.NewTrustedClaimVerifier())
	client := bountycaster.NewClient("http://127.0.0.1:1", time.Second)
	syncService := services.NewSyncService(repo, client, "@ns")
	handler := NewBountyHandler(bountyService, syncService)

	router := gin.New()
	api := router.Group("/api")
	api.Use(auth.OptionalAuthMiddleware())
	{
		api.GET("/bounties", handler.ListBounties)
		api.GET("/bounties/manage/:url", handler.GetBountyByManagementURL)
		api.GET("/bounties/:id", handler.GetBounty)
		api.POST("/bounties", handler.CreateBounty)
		api.POST("/bounties/sync", handler.TriggerSync)
		api.PATCH("/bounties/:id", handler.UpdateBounty)
		api.PATCH("/bounties/:id/status", handler.CloseBounty)
		api.DELETE("/bounties/:id", handler.DeleteBounty)
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBounty(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestBountyLifecycleEndToEnd(t *testing.T) {
	router := setupRouter(t)

	// Post a valid bounty.
	w := doJSON(t, router, http.MethodPost, "/api/bounties", gin.H{
		"title":          "Fix bug",
		"description":    "It crashes on start",
		"usdcAmount":     "50.00",
		"discordHandle":  "user#1",
		"creatorAddress": "0xabc",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	created := decodeBounty(t, w)
	if created["status"] != "open" {
		t.Errorf("expected status open, got %v", created["status"])
	}
	managementURL, _ := created["managementUrl"].(string)
	if managementURL == "" {
		t.Error("expected a non-empty managementUrl")
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("expected an id")
	}

	// Close it with a recipient address.
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/bounties/%s/status", id), gin.H{
		"status":           "closed",
		"recipientAddress": "0xrecipient",
		"creatorAddress":   "0xabc",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	closed := decodeBounty(t, w)
	if closed["status"] != "closed" {
		t.Errorf("expected status closed, got %v", closed["status"])
	}
	if closed["recipientAddress"] != "0xrecipient" {
		t.Errorf("expected recipient stored, got %v", closed["recipientAddress"])
	}

	// Repeating the close conflicts.
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/bounties/%s/status", id), gin.H{
		"status":           "closed",
		"recipientAddress": "0xother",
		"creatorAddress":   "0xabc",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("repeat close: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnonymousBountyLifecycleViaManagementToken(t *testing.T) {
	router := setupRouter(t)

	// No wallet, no farcaster identity, no creatorAddress claim.
	w := doJSON(t, router, http.MethodPost, "/api/bounties", gin.H{
		"title":         "Fix bug",
		"description":   "It crashes",
		"usdcAmount":    "50.00",
		"discordHandle": "user#1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBounty(t, w)
	id := created["id"].(string)
	managementURL := created["managementUrl"].(string)

	// Without the token the bounty cannot be touched.
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/bounties/%s/status", id), gin.H{
		"status":           "closed",
		"recipientAddress": "0xrecipient",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("close without token: expected 403, got %d: %s", w.Code, w.Body.String())
	}

	// The management token closes it.
	w = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/api/bounties/%s/status", id), gin.H{
		"status":           "closed",
		"recipientAddress": "0xrecipient",
		"managementToken":  managementURL,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("close with token: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	closed := decodeBounty(t, w)
	if closed["status"] != "closed" {
		t.Errorf("expected status closed, got %v", closed["status"])
	}
	if closed["recipientAddress"] != "0xrecipient" {
		t.Errorf("expected recipient stored, got %v", closed["recipientAddress"])
	}
}

func TestCreateBountyValidationStatus(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/bounties", gin.H{
		"title":          "Fix bug",
		"description":    "It crashes",
		"usdcAmount":     "not-a-number",
		"discordHandle":  "user#1",
		"creatorAddress": "0xabc",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateBountyForbiddenForStranger(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/bounties", gin.H{
		"title":          "Fix bug",
		"description":    "It crashes",
		"usdcAmount":     "50.00",
		"discordHandle":  "user#1",
		"creatorAddress": "0xabc",
	})
	created := decodeBounty(t, w)
	id := created["id"].(string)

	w = doJSON(t, router, http.MethodPatch, "/api/bounties/"+id, gin.H{
		"title":          "Hijacked",
		"creatorAddress": "0xother",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetBountyNotFound(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/bounties/7b8ddbbb-2222-4444-8888-999999999999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	// Malformed ids are a 404 too, not a 500.
	w = doJSON(t, router, http.MethodGet, "/api/bounties/not-a-uuid", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", w.Code)
	}
}

func TestGetBountyByManagementURL(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/bounties", gin.H{
		"title":          "Fix bug",
		"description":    "It crashes",
		"usdcAmount":     "50.00",
		"discordHandle":  "user#1",
		"creatorAddress": "0xabc",
	})
	created := decodeBounty(t, w)
	managementURL := created["managementUrl"].(string)

	w = doJSON(t, router, http.MethodGet, "/api/bounties/manage/"+managementURL, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	fetched := decodeBounty(t, w)
	if fetched["id"] != created["id"] {
		t.Errorf("management URL resolved the wrong bounty")
	}

	w = doJSON(t, router, http.MethodGet, "/api/bounties/manage/unknown-token", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", w.Code)
	}
}

func TestDeleteBounty(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/bounties", gin.H{
		"title":          "Fix bug",
		"description":    "It crashes",
		"usdcAmount":     "50.00",
		"discordHandle":  "user#1",
		"creatorAddress": "0xabc",
	})
	created := decodeBounty(t, w)
	id := created["id"].(string)

	w = doJSON(t, router, http.MethodDelete, "/api/bounties/"+id, gin.H{
		"creatorAddress": "0xother",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/api/bounties/"+id, gin.H{
		"creatorAddress": "0xabc",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/bounties/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestListBountiesReturnsArray(t *testing.T) {
	router := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/bounties", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var bounties []models.Bounty
	if err := json.Unmarshal(w.Body.Bytes(), &bounties); err != nil {
		t.Fatalf("expected a bare array, got %q", w.Body.String())
	}
}

func TestSyncEndpointReportsFetchFailure(t *testing.T) {
	router := setupRouter(t)

	// The stub client points at a closed port.
	w := doJSON(t, router, http.MethodPost, "/api/bounties/sync", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on fetch failure, got %d", w.Code)
	}
}
