package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the server reads from the environment. It is
// loaded once in main and passed down explicitly; nothing else in the tree
// touches os.Getenv.
type Config struct {
	ServerPort  string
	DatabaseURL string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	UploadDir    string
	MaxImageSize int64

	BcryptCost      int
	MinPasswordLen  int
	FeedPageSize    int
	FeedMaxPageSize int
	ListPageSize    int
	MaxCommentDepth int
}

// Load reads .env when present, then the environment. DATABASE_URL and
// JWT_SECRET have no sane defaults and are required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	cfg := &Config{
		ServerPort:  getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		SMTPHost: getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort: getEnvAsInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),

		UploadDir:    getEnv("UPLOAD_DIR", "uploads/images"),
		MaxImageSize: int64(getEnvAsInt("MAX_IMAGE_SIZE", 10<<20)),

		BcryptCost:      getEnvAsInt("BCRYPT_COST", 10),
		MinPasswordLen:  getEnvAsInt("MIN_PASSWORD_LEN", 8),
		FeedPageSize:    getEnvAsInt("FEED_PAGE_SIZE", 20),
		FeedMaxPageSize: getEnvAsInt("FEED_MAX_PAGE_SIZE", 100),
		ListPageSize:    getEnvAsInt("LIST_PAGE_SIZE", 50),
		MaxCommentDepth: getEnvAsInt("MAX_COMMENT_DEPTH", 8),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, fallback)
		return fallback
	}
	return n
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid value for %s, using default %s", key, fallback)
		return fallback
	}
	return d
}
