package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"supplies-portal/internal/config"
	"supplies-portal/internal/database"
	"supplies-portal/internal/forecast"
	"supplies-portal/internal/platform/httpclient"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/repository"
	"supplies-portal/internal/sheets"
	"supplies-portal/internal/tabular"
)

// TemplateHeaders are the header rows of the template worksheets.
var TemplateHeaders = map[string][]string{
	"FARMACI":    append(append([]string{}, forecast.MedicationColumns...), "notes"),
	"POSOLOGIA":  append(append([]string{}, forecast.ScheduleColumns...), "notes"),
	"INVENTARIO": append(append([]string{}, forecast.PurchaseColumns...), "notes"),
	"REGISTRO":   {"date", forecast.ColMedicationID, "event", "notes"},
	"LISTE":      {"list", "item", "notes"},
}

// NewStore builds the tabular store for the configured backend and wraps it
// in the read cache. db is only used by the database backend.
func NewStore(cfg *config.Config, secrets *config.Secrets, db *database.DB, log logger.Logger) (*tabular.CachedStore, error) {
	var inner tabular.Store

	switch cfg.Store.Backend {
	case config.BackendSheets:
		if secrets == nil {
			return nil, errors.New("sheets backend requires google_sheets secrets")
		}
		store, err := sheets.NewStore(sheets.Options{
			ServiceAccountJSON: secrets.GoogleSheets.ServiceAccountJSON,
			SpreadsheetID:      secrets.GoogleSheets.SheetID,
			APIURL:             cfg.Store.SheetsAPIURL,
			HTTP:               httpclient.New(cfg.Store.SheetsTimeout),
		}, log.With(logger.Fields{"component": "sheets"}))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets store: %w", err)
		}
		inner = store

	case config.BackendDatabase:
		if db == nil {
			return nil, errors.New("database backend requires a database connection")
		}
		inner = repository.NewWorksheetRepository(db)

	case config.BackendMemory:
		mem := tabular.NewMemoryStore()
		for _, name := range TemplateWorksheets {
			mem.Put(&tabular.Table{Name: name, Header: TemplateHeaders[name]})
		}
		inner = mem

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	log.Info("tabular store ready", logger.Fields{"backend": cfg.Store.Backend, "cache_ttl": cfg.Store.CacheTTL.String()})
	return tabular.NewCachedStore(inner, cfg.Store.CacheTTL), nil
}

// WorksheetCreator creates empty worksheets. *repository.WorksheetRepository
// satisfies it.
type WorksheetCreator interface {
	Create(ctx context.Context, name string, header []string) error
}

// InitTemplates creates any template worksheet that does not exist yet and
// returns the names it created. A caching store is flushed after creation.
func InitTemplates(ctx context.Context, store tabular.Store, creator WorksheetCreator) ([]string, error) {
	existing, err := store.Tables(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	var created []string
	for _, name := range TemplateWorksheets {
		if have[name] || have[strings.ToLower(name)] {
			continue
		}
		if err := creator.Create(ctx, name, TemplateHeaders[name]); err != nil && !errors.Is(err, repository.ErrWorksheetExists) {
			return created, fmt.Errorf("failed to create %s: %w", name, err)
		}
		created = append(created, name)
	}

	if c, ok := store.(interface{ InvalidateAll() }); ok && len(created) > 0 {
		c.InvalidateAll()
	}
	return created, nil
}
