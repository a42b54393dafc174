package main

import (
	"fmt"
	"time"

	"github.com/stakpak/agent-core/internal/config"
	"github.com/stakpak/agent-core/internal/schedulestore"
)

// schedulerLocation resolves the IANA timezone the scheduler's cron
// clock evaluates in, per spec.md §9 (defaults to UTC).
func schedulerLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler location %q: %w", name, err)
	}
	return loc, nil
}

// openStore opens and migrates the shared sqlite schedule store that
// both `mcp server` and the `watch` subcommands read and write.
func openStore() (*schedulestore.Store, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := schedulestore.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open schedule store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate schedule store: %w", err)
	}
	return schedulestore.New(db.Conn()), db.Close, nil
}
