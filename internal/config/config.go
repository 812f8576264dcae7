package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all environment configuration values for the application.
// These values are loaded from a .env file at startup.
type Config struct {
	// ServerPort is the port the HTTP server listens on
	ServerPort string

	// MongoURI is the connection string of the message/user store.
	// When empty the server falls back to the in-memory store.
	MongoURI string

	// MongoDB is the database name within the deployment
	MongoDB string

	// JWTSecret signs and verifies bearer tokens
	JWTSecret string

	// TokenTTL bounds the lifetime of issued tokens
	TokenTTL time.Duration

	// BcryptCost is the cost factor for credential hashing
	BcryptCost int

	// CORSOrigins is the explicit cross-origin allow-list
	CORSOrigins []string
}

// Load reads environment variables and returns a populated Config struct.
// It will load from a .env file if present, then read from environment
// variables. Falls back to sensible defaults if values are not set.
func Load() *Config {
	// Attempt to load .env file - not an error if it doesn't exist
	// as we may be running in production with real environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		ServerPort:  getEnv("PORT", "3001"),
		MongoURI:    getEnv("MONGO_URI", ""),
		MongoDB:     getEnv("MONGO_DB", "echo"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenTTL:    time.Duration(getEnvInt("TOKEN_TTL_SECONDS", 3600)) * time.Second,
		BcryptCost:  getEnvInt("BCRYPT_COST", 10),
		CORSOrigins: splitOrigins(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	// Validate required configuration
	if config.MongoURI == "" {
		log.Println("WARNING: MONGO_URI is not set, records will not survive restarts")
	}
	if config.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set")
	}
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		log.Printf("WARNING: BCRYPT_COST %d out of range, using default %d", config.BcryptCost, bcrypt.DefaultCost)
		config.BcryptCost = bcrypt.DefaultCost
	}

	return config
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("WARNING: %s is not a number, using default %d", key, defaultValue)
	}
	return defaultValue
}

// splitOrigins parses a comma-separated origin list and trims whitespace
func splitOrigins(raw string) []string {
	origins := strings.Split(raw, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	return origins
}
