package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"supplies-portal/internal/config"
	"supplies-portal/internal/forecast"
	"supplies-portal/internal/models"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/tabular"
)

// TemplateWorksheets are the tabs the portal looks for, in display order.
var TemplateWorksheets = []string{"FARMACI", "POSOLOGIA", "INVENTARIO", "REGISTRO", "LISTE"}

var (
	ErrNoWorksheets     = errors.New("no expected worksheets found")
	ErrUnknownWorksheet = errors.New("worksheet is not available")
)

// AuditLogger records user actions. *repository.AuditRepository satisfies it.
type AuditLogger interface {
	LogAction(ctx context.Context, username, action, entityType, entityID string, details map[string]interface{}, ipAddress, userAgent string) error
}

// Actor identifies who performed an action, for the audit trail.
type Actor struct {
	Username  string
	IPAddress string
	UserAgent string
}

type invalidator interface {
	Invalidate(name string)
}

// PortalService ties the tabular store to the forecast engine.
type PortalService struct {
	store      tabular.Store
	audit      AuditLogger
	cfg        config.ForecastConfig
	configured string
	log        logger.Logger
	now        func() time.Time
}

// NewPortalService creates the service. configuredWorksheet is the optional
// worksheet named in the secrets file; audit may be nil.
func NewPortalService(store tabular.Store, audit AuditLogger, cfg config.ForecastConfig, configuredWorksheet string, log logger.Logger) *PortalService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PortalService{
		store:      store,
		audit:      audit,
		cfg:        cfg,
		configured: strings.TrimSpace(configuredWorksheet),
		log:        log,
		now:        time.Now,
	}
}

// Today returns the current date in the configured time zone.
func (s *PortalService) Today() time.Time {
	y, m, d := s.now().In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WarnWithinDays is the purchase-by highlight window.
func (s *PortalService) WarnWithinDays() int {
	return s.cfg.WarnWithinDays
}

// Worksheets lists the expected worksheets that exist in the store: the
// configured one first, then the template tabs, then their lower-case
// variants.
func (s *PortalService) Worksheets(ctx context.Context) ([]string, error) {
	tables, err := s.store.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list worksheets: %w", err)
	}
	exists := make(map[string]bool, len(tables))
	for _, t := range tables {
		exists[t] = true
	}

	var candidates []string
	if s.configured != "" {
		candidates = append(candidates, s.configured)
	}
	candidates = append(candidates, TemplateWorksheets...)
	for _, w := range TemplateWorksheets {
		candidates = append(candidates, strings.ToLower(w))
	}

	seen := make(map[string]bool, len(candidates))
	var available []string
	for _, c := range candidates {
		if seen[c] || !exists[c] {
			continue
		}
		seen[c] = true
		available = append(available, c)
	}

	if len(available) == 0 {
		return nil, ErrNoWorksheets
	}
	return available, nil
}

// LoadWorksheet reads one of the available worksheets.
func (s *PortalService) LoadWorksheet(ctx context.Context, name string) (*tabular.Table, error) {
	if err := s.checkAvailable(ctx, name); err != nil {
		return nil, err
	}
	return s.store.Read(ctx, name)
}

// SaveWorksheet writes rows back under the worksheet's current header, read
// fresh from the store. Columns outside the header are dropped and missing
// ones written empty.
func (s *PortalService) SaveWorksheet(ctx context.Context, actor Actor, name string, rows []tabular.Row) error {
	if err := s.checkAvailable(ctx, name); err != nil {
		return err
	}

	if c, ok := s.store.(invalidator); ok {
		c.Invalidate(name)
	}
	current, err := s.store.Read(ctx, name)
	if err != nil {
		return err
	}
	if !tabular.HeaderValid(current.Header) {
		return tabular.ErrEmptyHeader
	}

	if err := s.store.Write(ctx, name, current.Header, rows); err != nil {
		return err
	}

	s.log.Info("worksheet saved", logger.Fields{"worksheet": name, "rows": len(rows), "user": actor.Username})

	if s.audit != nil {
		details := map[string]interface{}{"rows": len(rows)}
		if err := s.audit.LogAction(ctx, actor.Username, models.ActionWorksheetSaved, "worksheet", name, details, actor.IPAddress, actor.UserAgent); err != nil {
			s.log.Warn("failed to record audit entry", logger.Fields{"worksheet": name, "err": err})
		}
	}
	return nil
}

// Forecast reads the medication, schedule and purchase worksheets and runs
// the engine for today.
func (s *PortalService) Forecast(ctx context.Context) (*forecast.Report, error) {
	meds, err := s.store.Read(ctx, s.cfg.MedicationsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.cfg.MedicationsSheet, err)
	}
	schedules, err := s.store.Read(ctx, s.cfg.ScheduleSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.cfg.ScheduleSheet, err)
	}
	purchases, err := s.store.Read(ctx, s.cfg.PurchasesSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.cfg.PurchasesSheet, err)
	}

	report, err := forecast.Compute(forecast.Input{
		Medications:  meds,
		Schedules:    schedules,
		Purchases:    purchases,
		Today:        s.Today(),
		LeadTimeDays: s.cfg.LeadTimeDays,
	})
	if err != nil {
		return nil, err
	}

	for _, w := range report.Warnings {
		s.log.Warn("forecast row skipped", logger.Fields{
			"kind":          string(w.Kind),
			"table":         w.Table,
			"row":           w.Row,
			"medication_id": w.MedicationID,
			"value":         w.Value,
		})
	}
	return report, nil
}

func (s *PortalService) checkAvailable(ctx context.Context, name string) error {
	available, err := s.Worksheets(ctx)
	if err != nil {
		return err
	}
	for _, w := range available {
		if w == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownWorksheet, name)
}
