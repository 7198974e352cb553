package forecast

import (
	"strings"
	"time"

	"supplies-portal/internal/tabular"

	"github.com/shopspring/decimal"
)

// Column names of the three forecast worksheets.
const (
	ColMedicationID    = "medication_id"
	ColDisplayName     = "display_name"
	ColDoseAmount      = "dose_amount"
	ColUnit            = "unit"
	ColFrequency       = "frequency"
	ColActiveDays      = "active_days"
	ColIsActive        = "is_active"
	ColPurchaseDate    = "purchase_date"
	ColQuantity        = "quantity"
	ColUnitsPerPackage = "units_per_package"
)

var (
	MedicationColumns = []string{ColMedicationID, ColDisplayName}
	ScheduleColumns   = []string{ColMedicationID, ColDoseAmount, ColUnit, ColFrequency, ColActiveDays, ColIsActive}
	PurchaseColumns   = []string{ColMedicationID, ColPurchaseDate, ColQuantity, ColUnitsPerPackage}
)

// Medication is a catalog entry.
type Medication struct {
	ID          string
	DisplayName string
}

// DoseSchedule is an active, parsed dosing rule.
type DoseSchedule struct {
	MedicationID string
	DoseAmount   decimal.Decimal
	Unit         string
	Frequency    Frequency
	ActiveDays   int
}

// WeeklyUnits is the amount consumed per week under this rule.
func (d DoseSchedule) WeeklyUnits() decimal.Decimal {
	mult := decimal.NewFromInt(7)
	if d.Frequency == Weekly {
		mult = decimal.NewFromInt(int64(d.ActiveDays))
	}
	return d.DoseAmount.Mul(mult)
}

// Purchase is a replenishment event with its quantity already expressed in
// base units.
type Purchase struct {
	MedicationID string
	Date         time.Time
	Quantity     decimal.Decimal
}

// sheetRow converts a zero-based data row index into the sheet row number.
func sheetRow(i int) int {
	return i + 2
}

func cell(r tabular.Row, col string) string {
	return strings.TrimSpace(r[col])
}

// DecodeMedications maps medication ids to display names. The first row for
// an id wins.
func DecodeMedications(t *tabular.Table) map[string]Medication {
	out := make(map[string]Medication, len(t.Rows))
	for _, r := range t.Rows {
		id := cell(r, ColMedicationID)
		if id == "" {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}
		out[id] = Medication{ID: id, DisplayName: cell(r, ColDisplayName)}
	}
	return out
}

// DecodeSchedules returns the active rows that parse cleanly. Inactive rows
// are dropped before any parsing so they never produce warnings.
func DecodeSchedules(t *tabular.Table) ([]DoseSchedule, []Warning) {
	var (
		out      []DoseSchedule
		warnings []Warning
	)
	for i, r := range t.Rows {
		if !ParseBool(r[ColIsActive]) {
			continue
		}
		medID := cell(r, ColMedicationID)

		dose, err := ParseDecimal(r[ColDoseAmount])
		if err != nil {
			warnings = append(warnings, Warning{
				Kind: UnparseableDose, Table: t.Name, Row: sheetRow(i),
				MedicationID: medID, Value: r[ColDoseAmount],
			})
			continue
		}

		freq, ok := ParseFrequency(r[ColFrequency])
		if !ok {
			warnings = append(warnings, Warning{
				Kind: UnsupportedFrequency, Table: t.Name, Row: sheetRow(i),
				MedicationID: medID, Value: r[ColFrequency],
			})
			continue
		}

		out = append(out, DoseSchedule{
			MedicationID: medID,
			DoseAmount:   dose,
			Unit:         cell(r, ColUnit),
			Frequency:    freq,
			ActiveDays:   countActiveDays(r[ColActiveDays]),
		})
	}
	return out, warnings
}

// DecodePurchases parses the purchase ledger. Missing dates fall back to
// today and package factors that are absent or not positive count as 1.
func DecodePurchases(t *tabular.Table, today time.Time) ([]Purchase, []Warning) {
	var (
		out      []Purchase
		warnings []Warning
	)
	for i, r := range t.Rows {
		medID := cell(r, ColMedicationID)

		qty, err := ParseDecimal(r[ColQuantity])
		if err != nil || qty.IsNegative() {
			warnings = append(warnings, Warning{
				Kind: UnparseablePurchaseQuantity, Table: t.Name, Row: sheetRow(i),
				MedicationID: medID, Value: r[ColQuantity],
			})
			continue
		}

		date := today
		if raw := cell(r, ColPurchaseDate); raw != "" {
			date, err = ParseDate(raw)
			if err != nil {
				warnings = append(warnings, Warning{
					Kind: UnparseablePurchaseDate, Table: t.Name, Row: sheetRow(i),
					MedicationID: medID, Value: raw,
				})
				continue
			}
		}

		factor, err := ParseDecimal(r[ColUnitsPerPackage])
		if err != nil || !factor.IsPositive() {
			factor = decimal.NewFromInt(1)
		}

		out = append(out, Purchase{
			MedicationID: medID,
			Date:         date,
			Quantity:     qty.Mul(factor),
		})
	}
	return out, warnings
}
