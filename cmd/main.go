package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"bounty-board/internal/auth"
	"bounty-board/internal/bountycaster"
	"bounty-board/internal/config"
	"bounty-board/internal/database"
	"bounty-board/internal/handlers"
	"bounty-board/internal/jobs"
	"bounty-board/internal/repository"
	"bounty-board/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize store
	repo := repository.NewRepository(database.GetDB())

	// Select the payment verifier. Trusted-claim is the default: closing a
	// bounty records whatever recipient the owner supplies.
	var verifier services.PaymentVerifier
	if cfg.Payment.VerifierMode == "onchain" {
		verifier = services.NewOnChainVerifier(cfg.Payment.SolanaNetwork, cfg.Payment.USDCMint)
		log.Println("Payment verifier: on-chain")
	} else {
		verifier = services.NewTrustedClaimVerifier()
		log.Println("Payment verifier: trusted claim")
	}

	// Initialize services
	bountyService := services.NewBountyService(repo, verifier)
	bountycasterClient := bountycaster.NewClient(cfg.Bountycaster.BaseURL, cfg.Bountycaster.FetchTimeout)
	syncService := services.NewSyncService(repo, bountycasterClient, cfg.Bountycaster.CommunityTag)

	// Initialize handlers
	bountyHandler := handlers.NewBountyHandler(bountyService, syncService)
	authHandler := handlers.NewAuthHandler()

	// Start the scheduled bounty sync
	syncJob := jobs.NewBountySyncJob(syncService)
	if err := syncJob.Start(cfg.Bountycaster.StartupDelay, cfg.Bountycaster.SyncInterval); err != nil {
		log.Fatalf("Failed to start bounty sync job: %v", err)
	}

	// Set up Gin router. gin.New rather than gin.Default: the /api request
	// logger below replaces gin's own.
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(apiRequestLogger())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Bounty routes. Mutations accept an optional bearer token; ownership is
	// re-checked in the service either way.
	api := router.Group("/api")
	api.Use(auth.OptionalAuthMiddleware())
	{
		api.GET("/bounties", bountyHandler.ListBounties)
		api.GET("/bounties/manage/:url", bountyHandler.GetBountyByManagementURL)
		api.GET("/bounties/:id", bountyHandler.GetBounty)
		api.POST("/bounties", bountyHandler.CreateBounty)
		api.POST("/bounties/sync", bountyHandler.TriggerSync)
		api.PATCH("/bounties/:id", bountyHandler.UpdateBounty)
		api.PATCH("/bounties/:id/status", bountyHandler.CloseBounty)
		api.DELETE("/bounties/:id", bountyHandler.DeleteBounty)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the sync scheduler; waits for an in-flight run to finish
	if err := syncJob.Stop(); err != nil {
		log.Printf("Failed to stop sync job: %v", err)
	}

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// apiRequestLogger logs method, path, status and duration for /api requests
func apiRequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		log.Printf("%s %s %d in %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}
