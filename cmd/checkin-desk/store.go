package main

import (
	"context"
	"database/sql"
	"fmt"

	"checkin-desk/common/database"
	"checkin-desk/internal/config"
	"checkin-desk/internal/repository"
	"checkin-desk/internal/seed"

	"go.uber.org/zap"
)

// openStore returns the Postgres store when DB_ENABLED, else the in-memory store seeded from
// SEED_FILE. An enabled but unreachable database is an error: numbers issued into memory
// would be lost on restart and handed out again.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.CheckInStore, *sql.DB, error) {
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("DB enabled but unreachable: %w", err)
		}
		log.Info("DB enabled for checkin-desk")
		return repository.NewPostgresCheckInStore(db), db, nil
	}

	mem := repository.NewMemoryCheckInStore()
	if cfg.SeedFile == "" {
		log.Warn("DB disabled, check-ins are kept in memory only")
		return mem, nil, nil
	}
	fixture, err := seed.LoadFile(cfg.SeedFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read seed file %s: %w", cfg.SeedFile, err)
	}
	if err := mem.Load(ctx, fixture); err != nil {
		return nil, nil, fmt.Errorf("failed to load seed file %s: %w", cfg.SeedFile, err)
	}
	log.Info("memory store seeded",
		zap.String("path", cfg.SeedFile),
		zap.Int("events", len(fixture.Events)),
		zap.Int("teams", len(fixture.Teams)),
	)
	return mem, nil, nil
}
