package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/coinconductor/coinconductor/internal/config"
	"github.com/coinconductor/coinconductor/internal/service"
	"github.com/coinconductor/coinconductor/internal/storage"
)

// initStorage opens the database with auto-migration.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		var err error
		dbPath, err = config.DefaultDatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
	} else {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// currentUserID resolves the configured budget owner, creating it on first
// use.
func currentUserID(ctx context.Context, store service.Storage) (int64, error) {
	name := viper.GetString("user.name")
	if name == "" {
		name = "default"
	}

	user, err := store.EnsureUser(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve user %q: %w", name, err)
	}
	return user.ID, nil
}

// parseDate parses a YYYY-MM-DD argument.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
