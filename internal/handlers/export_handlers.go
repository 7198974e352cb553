package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"supplies-portal/internal/forecast"
	"supplies-portal/internal/services"

	"github.com/jung-kurt/gofpdf"
)

var exportColumns = []string{
	"medication_id", "display_name", "unit", "weekly_consumption", "daily_consumption",
	"current_stock", "days_remaining", "runout_date", "purchase_by_date", "reorder",
}

// ExportRow is one forecast item flattened for CSV and PDF output
type ExportRow struct {
	MedicationID      string
	DisplayName       string
	Unit              string
	WeeklyConsumption string
	DailyConsumption  string
	CurrentStock      string
	DaysRemaining     string
	RunoutDate        string
	PurchaseByDate    string
	Reorder           string
}

func (e ExportRow) values() []string {
	return []string{
		e.MedicationID, e.DisplayName, e.Unit, e.WeeklyConsumption, e.DailyConsumption,
		e.CurrentStock, e.DaysRemaining, e.RunoutDate, e.PurchaseByDate, e.Reorder,
	}
}

// HandleExportCSV downloads the forecast as CSV. type=reorder limits the
// export to highlighted items.
func HandleExportCSV(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dataType := r.URL.Query().Get("type")
		if dataType == "" {
			dataType = "forecast"
		}
		if dataType != "forecast" && dataType != "reorder" {
			http.Error(w, "Invalid type parameter. Use: forecast or reorder", http.StatusBadRequest)
			return
		}

		report, err := p.Service.Forecast(r.Context())
		if err != nil {
			respondServiceError(w, r, p.Log, err)
			return
		}

		rows := exportRows(report, p.Service.WarnWithinDays(), dataType == "reorder")

		var csvBuffer bytes.Buffer
		csvWriter := csv.NewWriter(&csvBuffer)
		if err := writeForecastCSV(csvWriter, rows); err != nil {
			http.Error(w, fmt.Sprintf("Failed to generate CSV: %v", err), http.StatusInternalServerError)
			return
		}

		filename := fmt.Sprintf("supplies-%s-%s.csv", dataType, report.Today.Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
		w.Header().Set("Content-Length", strconv.Itoa(csvBuffer.Len()))
		w.Write(csvBuffer.Bytes())
	}
}

// HandleExportPDF downloads the forecast as a printable PDF report
func HandleExportPDF(p *Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := p.Service.Forecast(r.Context())
		if err != nil {
			respondServiceError(w, r, p.Log, err)
			return
		}

		pdfBytes, err := generatePDF(report, exportRows(report, p.Service.WarnWithinDays(), false))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to generate PDF: %v", err), http.StatusInternalServerError)
			return
		}

		filename := fmt.Sprintf("supplies-forecast-%s.pdf", report.Today.Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))
		w.Write(pdfBytes)
	}
}

func exportRows(report *forecast.Report, warnWithin int, reorderOnly bool) []ExportRow {
	alerts := reorderIndex(report, warnWithin)

	rows := make([]ExportRow, 0, len(report.Items))
	for _, item := range report.Items {
		severity := alerts[itemKey(item)]
		if reorderOnly && severity == "" {
			continue
		}

		row := ExportRow{
			MedicationID:      item.MedicationID,
			DisplayName:       item.DisplayName,
			Unit:              item.Unit,
			WeeklyConsumption: item.WeeklyConsumption.Round(2).String(),
			DailyConsumption:  item.DailyConsumption.Round(2).String(),
			CurrentStock:      item.CurrentStock.Round(2).String(),
			Reorder:           severity,
		}
		if item.DaysRemaining.Valid {
			row.DaysRemaining = item.DaysRemaining.Decimal.StringFixed(1)
		}
		if d := dateString(item.RunoutDate); d != nil {
			row.RunoutDate = *d
		}
		if d := dateString(item.PurchaseByDate); d != nil {
			row.PurchaseByDate = *d
		}
		rows = append(rows, row)
	}
	return rows
}

// writeForecastCSV writes forecast rows to CSV
func writeForecastCSV(writer *csv.Writer, rows []ExportRow) error {
	if err := writer.Write(exportColumns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.values()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// generatePDF lays the forecast out as a landscape A4 table, shading the
// rows that need reordering, followed by the skipped-row warnings.
func generatePDF(report *forecast.Report, rows []ExportRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Supplies forecast", true)
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	headers := []string{"Medication", "Unit", "Weekly", "Daily", "Stock", "Days left", "Runs out", "Buy by", "Reorder"}
	widths := []float64{70, 25, 25, 25, 25, 25, 30, 30, 22}

	tableHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(238, 241, 246)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Supplies forecast", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("As of %s, lead time %d days", report.Today.Format("2 January 2006"), report.LeadTimeDays), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	tableHeader()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			tableHeader()
		}

		fill := false
		switch row.Reorder {
		case services.SeverityOverdue:
			pdf.SetFillColor(251, 213, 213)
			fill = true
		case services.SeverityDue:
			pdf.SetFillColor(255, 241, 194)
			fill = true
		}

		name := row.DisplayName
		if name != row.MedicationID {
			name = fmt.Sprintf("%s (%s)", row.DisplayName, row.MedicationID)
		}
		cells := []string{
			truncateString(name, 45), row.Unit, row.WeeklyConsumption, row.DailyConsumption,
			row.CurrentStock, dashIfEmpty(row.DaysRemaining), dashIfEmpty(row.RunoutDate),
			dashIfEmpty(row.PurchaseByDate), row.Reorder,
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, tr(c), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(rows) == 0 {
		pdf.CellFormat(0, 8, "No medications to forecast.", "", 1, "L", false, 0, "")
	}

	if len(report.Warnings) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "Skipped rows", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, warning := range report.Warnings {
			pdf.MultiCell(0, 5, tr("- "+warning.Message()), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
