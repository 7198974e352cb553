package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"supplies-portal/internal/config"
	"supplies-portal/internal/database"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/services"
	"supplies-portal/internal/tabular"
)

// env is what most commands need: configuration, an open migrated database
// and a logger that keeps stdout clean for command output.
type env struct {
	cfg *config.Config
	db  *database.DB
	log logger.Logger
}

func openEnv(ctx context.Context, stderr io.Writer) (*env, error) {
	cfg, err := config.LoadForTools()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:  logger.Warn,
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    "portalctl",
		Out:    stderr,
	})

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &env{cfg: cfg, db: db, log: log}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}

// secrets loads the secrets file. The sheets backend cannot run without it;
// the other backends only need it for the configured worksheet name.
func (e *env) secrets() (*config.Secrets, error) {
	if e.cfg.Store.Backend != config.BackendSheets {
		if _, err := os.Stat(e.cfg.Store.SecretsPath); os.IsNotExist(err) {
			return &config.Secrets{}, nil
		}
	}
	return config.LoadSecrets(e.cfg.Store.SecretsPath, e.cfg.Store.Backend == config.BackendSheets)
}

func (e *env) store() (*tabular.CachedStore, *config.Secrets, error) {
	secrets, err := e.secrets()
	if err != nil {
		return nil, nil, err
	}
	store, err := services.NewStore(e.cfg, secrets, e.db, e.log)
	if err != nil {
		return nil, nil, err
	}
	return store, secrets, nil
}

func (e *env) portal() (*services.PortalService, error) {
	store, secrets, err := e.store()
	if err != nil {
		return nil, err
	}
	return services.NewPortalService(store, nil, e.cfg.Forecast, secrets.GoogleSheets.Worksheet, e.log), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
