package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	App          AppConfig
	Bountycaster BountycasterConfig
	Payment      PaymentConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
}

// BountycasterConfig holds external bounty board settings
type BountycasterConfig struct {
	BaseURL      string
	CommunityTag string
	FetchTimeout time.Duration
	SyncInterval time.Duration
	StartupDelay time.Duration
}

// PaymentConfig holds settlement verification settings
type PaymentConfig struct {
	VerifierMode  string // "trusted" or "onchain"
	SolanaNetwork string
	USDCMint      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "bounty_board"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Bountycaster: BountycasterConfig{
			BaseURL:      getEnv("BOUNTYCASTER_BASE_URL", "https://www.bountycaster.xyz"),
			CommunityTag: getEnv("BOUNTYCASTER_COMMUNITY_TAG", "@ns"),
			FetchTimeout: getDurationEnv("BOUNTYCASTER_FETCH_TIMEOUT", 30*time.Second),
			SyncInterval: getDurationEnv("BOUNTY_SYNC_INTERVAL", time.Hour),
			StartupDelay: getDurationEnv("BOUNTY_SYNC_STARTUP_DELAY", 5*time.Second),
		},
		Payment: PaymentConfig{
			VerifierMode:  getEnv("PAYMENT_VERIFIER", "trusted"),
			SolanaNetwork: getEnv("SOLANA_NETWORK", "devnet"),
			USDCMint:      getEnv("USDC_MINT_ADDRESS", ""),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Payment.VerifierMode != "trusted" && config.Payment.VerifierMode != "onchain" {
		return nil, fmt.Errorf("PAYMENT_VERIFIER must be \"trusted\" or \"onchain\", got %q", config.Payment.VerifierMode)
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getDurationEnv gets a duration environment variable with a fallback default
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
