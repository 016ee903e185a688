package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/costcalc/internal/catalog"
	"github.com/Simplici0/costcalc/internal/config"
	"github.com/Simplici0/costcalc/internal/db"
	"github.com/Simplici0/costcalc/internal/geometry"
	"github.com/Simplici0/costcalc/internal/geometry/step"
	"github.com/Simplici0/costcalc/internal/migrations"
	"github.com/Simplici0/costcalc/internal/seed"
)

// newDatasetSource builds the reference dataset source selected by
// DATASET_DRIVER. The returned closer releases any held resources.
func newDatasetSource(ctx context.Context, cfg config.Config, log *zap.Logger) (catalog.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.DatasetDriver {
	case "xlsx":
		return catalog.XLSXSource{Path: cfg.DatasetPath}, noop, nil
	case "csv":
		return catalog.CSVSource{Path: cfg.DatasetPath}, noop, nil
	case "s3":
		src, err := catalog.NewS3Source(ctx, catalog.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Key:             cfg.S3.Key,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, noop, nil
	case "sqlite":
		database, err := openReferenceDB(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return catalog.SQLiteSource{DB: database}, database.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown dataset driver %q", cfg.DatasetDriver)
}

// openReferenceDB migrates the database and seeds it, from DATASET_PATH when
// that points at a spreadsheet, otherwise with starter rows in dev.
func openReferenceDB(ctx context.Context, cfg config.Config, log *zap.Logger) (*sql.DB, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrations.Up(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	data, origin, err := seedData(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, err
	}
	if origin == "" {
		return database, nil
	}

	stats, err := seed.Run(ctx, database, data)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to seed reference data: %w", err)
	}
	log.Info("reference data seeded",
		zap.String("from", origin),
		zap.Int("inserts", stats.Inserts),
		zap.Int("updates", stats.Updates),
	)
	return database, nil
}

func seedData(ctx context.Context, cfg config.Config) (seed.Data, string, error) {
	var src catalog.Source
	switch strings.ToLower(filepath.Ext(cfg.DatasetPath)) {
	case ".xlsx", ".xlsm":
		src = catalog.XLSXSource{Path: cfg.DatasetPath}
	case ".csv":
		src = catalog.CSVSource{Path: cfg.DatasetPath}
	}

	if src != nil {
		if _, err := os.Stat(cfg.DatasetPath); err == nil {
			c, err := src.Load(ctx)
			if err != nil {
				return seed.Data{}, "", fmt.Errorf("failed to import %s: %w", cfg.DatasetPath, err)
			}
			return seed.FromCatalog(c), cfg.DatasetPath, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return seed.Data{}, "", fmt.Errorf("stat %s: %w", cfg.DatasetPath, err)
		}
	}

	if cfg.IsDev() {
		return seed.Defaults(), "defaults", nil
	}
	return seed.Data{}, "", nil
}

func newGeometryReader(cfg config.Config) geometry.Reader {
	if cfg.GeometryReader == "command" {
		return geometry.CommandReader{Command: cfg.GeometryCommand}
	}
	return step.NewReader()
}
