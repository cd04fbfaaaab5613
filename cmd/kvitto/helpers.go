package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/lindqvist/kvitto/internal/config"
	"github.com/lindqvist/kvitto/internal/service"
	"github.com/lindqvist/kvitto/internal/storage"
	"github.com/lindqvist/kvitto/internal/suggest"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/kvitto/kvitto.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// currentUser resolves the user all commands operate as.
func currentUser() (string, error) {
	userID := viper.GetString("user.id")
	if userID == "" {
		userID = os.Getenv("KVITTO_USER")
	}
	if userID == "" {
		return "", fmt.Errorf("no user configured: set user.id in config or pass --user")
	}
	return userID, nil
}

// createSuggestClient creates a suggestion service client based on
// configuration. Shared by the commands that talk to the AI collaborator.
func createSuggestClient() (*suggest.Client, error) {
	url := viper.GetString("suggester.url")
	if url == "" {
		return nil, fmt.Errorf("suggestion service URL not found in config (suggester.url)")
	}

	// Check viper first, then environment variable
	apiKey := viper.GetString("suggester.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("KVITTO_SUGGESTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("suggestion service API key not found in config or KVITTO_SUGGESTER_API_KEY environment variable")
	}

	cfg := suggest.Config{
		URL:               url,
		APIKey:            apiKey,
		Model:             viper.GetString("suggester.model"),
		Temperature:       viper.GetFloat64("suggester.temperature"),
		MaxTokens:         viper.GetInt("suggester.max_tokens"),
		RequestsPerMinute: viper.GetInt("suggester.rate_limit"),
	}

	client, err := suggest.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion client: %w", err)
	}
	return client, nil
}

// allowGlobalWrites resolves the global-write policy from the --allow-global
// flag and the merge.allow_global config key.
func allowGlobalWrites(allowGlobalFlag bool) bool {
	if allowGlobalFlag {
		return true
	}
	return viper.GetBool("merge.allow_global")
}
