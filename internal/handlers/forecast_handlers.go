package handlers

import (
	"errors"
	"net/http"
	"time"

	"supplies-portal/internal/forecast"
	"supplies-portal/internal/platform/logger"
	"supplies-portal/internal/services"

	"github.com/shopspring/decimal"
)

// ForecastItemResponse is one forecast row as returned by the API
type ForecastItemResponse struct {
	MedicationID      string              `json:"medication_id"`
	DisplayName       string              `json:"display_name"`
	Unit              string              `json:"unit"`
	WeeklyConsumption decimal.Decimal     `json:"weekly_consumption"`
	DailyConsumption  decimal.Decimal     `json:"daily_consumption"`
	CurrentStock      decimal.Decimal     `json:"current_stock"`
	DaysRemaining     decimal.NullDecimal `json:"days_remaining"`
	RunoutDate        *string             `json:"runout_date"`
	PurchaseByDate    *string             `json:"purchase_by_date"`
	Reorder           string              `json:"reorder,omitempty"`
}

// WarningResponse describes a row the forecast skipped
type WarningResponse struct {
	forecast.Warning
	Message string `json:"message"`
}

// ForecastResponse is the forecast as returned by the API
type ForecastResponse struct {
	Today          string                 `json:"today"`
	LeadTimeDays   int                    `json:"lead_time_days"`
	WarnWithinDays int                    `json:"warn_within_days"`
	Items          []ForecastItemResponse `json:"items"`
	Warnings       []WarningResponse      `json:"warnings"`
}

type forecastRow struct {
	Item     forecast.Item
	Severity string
}

type forecastView struct {
	Today          string
	LeadTimeDays   int
	WarnWithinDays int
	Rows           []forecastRow
	Warnings       []string
	MissingColumns []string
}

// HandleGetForecast returns the forecast as JSON
func HandleGetForecast(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := p.Service.Forecast(r.Context())
		if err != nil {
			respondServiceError(w, r, p.Log, err)
			return
		}
		respondJSON(w, http.StatusOK, forecastResponse(report, p.Service.WarnWithinDays()))
	}
}

// HandleForecastPage renders the forecast table with reorder highlighting
func HandleForecastPage(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := p.page(r, "Forecast", "forecast")
		view := forecastView{WarnWithinDays: p.Service.WarnWithinDays()}

		report, err := p.Service.Forecast(r.Context())
		if err != nil {
			status, message, _ := errorStatus(err)
			var missing *forecast.MissingColumnsError
			switch {
			case errors.As(err, &missing):
				view.MissingColumns = missing.Names()
			case status >= http.StatusInternalServerError:
				p.Log.Error("forecast failed", logger.Fields{"err": err})
				page.Error = message
			default:
				page.Error = message
			}
			page.Data = view
			renderPage(w, status, "forecast.html", page, p.Log)
			return
		}

		view.Today = report.Today.Format("2006-01-02")
		view.LeadTimeDays = report.LeadTimeDays
		alerts := reorderIndex(report, view.WarnWithinDays)
		for _, item := range report.Items {
			view.Rows = append(view.Rows, forecastRow{Item: item, Severity: alerts[itemKey(item)]})
		}
		for _, warning := range report.Warnings {
			view.Warnings = append(view.Warnings, warning.Message())
		}

		page.Data = view
		renderPage(w, http.StatusOK, "forecast.html", page, p.Log)
	}
}

func forecastResponse(report *forecast.Report, warnWithin int) ForecastResponse {
	resp := ForecastResponse{
		Today:          report.Today.Format("2006-01-02"),
		LeadTimeDays:   report.LeadTimeDays,
		WarnWithinDays: warnWithin,
		Items:          make([]ForecastItemResponse, 0, len(report.Items)),
		Warnings:       make([]WarningResponse, 0, len(report.Warnings)),
	}

	alerts := reorderIndex(report, warnWithin)
	for _, item := range report.Items {
		resp.Items = append(resp.Items, ForecastItemResponse{
			MedicationID:      item.MedicationID,
			DisplayName:       item.DisplayName,
			Unit:              item.Unit,
			WeeklyConsumption: item.WeeklyConsumption,
			DailyConsumption:  item.DailyConsumption,
			CurrentStock:      item.CurrentStock,
			DaysRemaining:     item.DaysRemaining,
			RunoutDate:        dateString(item.RunoutDate),
			PurchaseByDate:    dateString(item.PurchaseByDate),
			Reorder:           alerts[itemKey(item)],
		})
	}
	for _, warning := range report.Warnings {
		resp.Warnings = append(resp.Warnings, WarningResponse{Warning: warning, Message: warning.Message()})
	}
	return resp
}

// reorderIndex maps each highlighted item to its severity
func reorderIndex(report *forecast.Report, warnWithin int) map[string]string {
	index := make(map[string]string)
	for _, alert := range services.ReorderAlerts(report, warnWithin) {
		index[itemKey(alert.Item)] = alert.Severity
	}
	return index
}

func itemKey(item forecast.Item) string {
	return item.MedicationID + "\x00" + item.Unit
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
