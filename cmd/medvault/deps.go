package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"medvault/internal/config"
	"medvault/internal/database"
	"medvault/internal/database/migration"
	"medvault/internal/logging"
	"medvault/internal/repository"
	"medvault/internal/repository/cache"
	"medvault/internal/repository/postgres"
	"medvault/internal/storage"
)

// deps are the long-lived resources shared by every subcommand.
type deps struct {
	cfg    *config.AppConfig
	logger *slog.Logger
	db     *sql.DB
	store  storage.Storage
	repo   repository.DocumentRepository
}

func (d *deps) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

// newStorage picks the byte store named by STORAGE_DRIVER.
func newStorage(ctx context.Context, cfg *config.AppConfig) (storage.Storage, error) {
	switch {
	case cfg.Storage.IsLocal():
		return storage.NewLocal(cfg.Storage.UploadDir)
	case cfg.Storage.Driver == config.DriverMinIO || cfg.Storage.Driver == "s3":
		return storage.NewMinIO(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openDeps loads configuration, connects to PostgreSQL, ensures the schema and opens storage.
func openDeps(ctx context.Context) (*deps, error) {
	cfg := config.Load()
	logger := logging.New(nil, cfg.TimeLocation())

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	d := &deps{cfg: cfg, logger: logger, db: db}

	if err := migration.EnsureSchema(ctx, db, logger, cfg.Database.Host); err != nil {
		d.Close()
		return nil, err
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	d.store = store
	d.repo = cache.NewDocuments(postgres.NewDocumentPostgres(db), cfg.CacheSize, cfg.CacheTTL)

	logger.Info("dependencies_ready",
		"storage_driver", cfg.Storage.Driver,
		"upload_dir", cfg.Storage.UploadDir,
		"cache_size", cfg.CacheSize,
	)
	return d, nil
}
