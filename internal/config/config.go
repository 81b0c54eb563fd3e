// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Backend             model.Backend
	FirebaseAPIKey      string
	FirebaseProjectID   string
	FirebaseCredentials string
	Collection          string
	ListenAddr          string
	DBPath              string
	SecretKey           []byte
	LogLevel            slog.Level
}

// Load reads configuration from environment variables and returns a validated Config.
// FIRECHAT_FIREBASE_API_KEY and FIRECHAT_FIREBASE_PROJECT_ID are required for the
// firebase backend. Optional variables with defaults: FIRECHAT_BACKEND (firebase),
// FIRECHAT_COLLECTION (messages), FIRECHAT_LISTEN_ADDR (127.0.0.1:8080),
// FIRECHAT_DB_PATH (firechat.db), FIRECHAT_LOG_LEVEL (info).
// FIRECHAT_SECRET_KEY, when set, must be 64 hex chars.
// FIRECHAT_FIREBASE_CREDENTIALS names a service account file that replaces the
// signed-in user's token for Firestore access; it is for development only.
func Load() (*Config, error) {
	backend := model.BackendFirebase
	if v, ok := os.LookupEnv("FIRECHAT_BACKEND"); ok && v != "" {
		backend = model.Backend(strings.ToLower(strings.TrimSpace(v)))
	}
	switch backend {
	case model.BackendFirebase, model.BackendMemory:
	default:
		return nil, fmt.Errorf("FIRECHAT_BACKEND must be %q or %q, got %q", model.BackendFirebase, model.BackendMemory, backend)
	}

	apiKey := os.Getenv("FIRECHAT_FIREBASE_API_KEY")
	projectID := os.Getenv("FIRECHAT_FIREBASE_PROJECT_ID")
	if backend == model.BackendFirebase {
		if apiKey == "" {
			return nil, fmt.Errorf("FIRECHAT_FIREBASE_API_KEY is required for the firebase backend")
		}
		if projectID == "" {
			return nil, fmt.Errorf("FIRECHAT_FIREBASE_PROJECT_ID is required for the firebase backend")
		}
	}

	collection := "messages"
	if v, ok := os.LookupEnv("FIRECHAT_COLLECTION"); ok && v != "" {
		collection = v
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("FIRECHAT_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "firechat.db"
	if v, ok := os.LookupEnv("FIRECHAT_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("FIRECHAT_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("FIRECHAT_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("FIRECHAT_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		secretKey = key
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("FIRECHAT_LOG_LEVEL"); ok && v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("FIRECHAT_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return &Config{
		Backend:             backend,
		FirebaseAPIKey:      apiKey,
		FirebaseProjectID:   projectID,
		FirebaseCredentials: os.Getenv("FIRECHAT_FIREBASE_CREDENTIALS"),
		Collection:          collection,
		ListenAddr:          listenAddr,
		DBPath:              dbPath,
		SecretKey:           secretKey,
		LogLevel:            logLevel,
	}, nil
}
