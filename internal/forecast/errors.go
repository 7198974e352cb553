package forecast

import (
	"fmt"
	"strings"
)

// QualifiedColumn names a column of a specific worksheet.
type QualifiedColumn struct {
	Table  string
	Column string
}

func (q QualifiedColumn) String() string {
	return strings.ToLower(q.Table) + "." + q.Column
}

// MissingColumnsError aborts a forecast whose input worksheets lack
// required columns.
type MissingColumnsError struct {
	Missing []QualifiedColumn
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Names(), ", ")
}

// Names returns the qualified "table.column" names in report order.
func (e *MissingColumnsError) Names() []string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = m.String()
	}
	return names
}

// WarningKind classifies a row excluded from the forecast.
type WarningKind string

const (
	UnparseableDose             WarningKind = "unparseable_dose"
	UnsupportedFrequency        WarningKind = "unsupported_frequency"
	UnparseablePurchaseQuantity WarningKind = "unparseable_purchase_quantity"
	UnparseablePurchaseDate     WarningKind = "unparseable_purchase_date"
)

// Warning reports one row the engine skipped. Row is the sheet row number,
// counting the header as row 1.
type Warning struct {
	Kind         WarningKind `json:"kind"`
	Table        string      `json:"table"`
	Row          int         `json:"row"`
	MedicationID string      `json:"medication_id"`
	Value        string      `json:"value"`
}

func (w Warning) Message() string {
	switch w.Kind {
	case UnparseableDose:
		return fmt.Sprintf("%s row %d (%s): dose %q is not a number", w.Table, w.Row, w.MedicationID, w.Value)
	case UnsupportedFrequency:
		return fmt.Sprintf("%s row %d (%s): unsupported frequency %q", w.Table, w.Row, w.MedicationID, w.Value)
	case UnparseablePurchaseQuantity:
		return fmt.Sprintf("%s row %d (%s): quantity %q is not a number >= 0", w.Table, w.Row, w.MedicationID, w.Value)
	case UnparseablePurchaseDate:
		return fmt.Sprintf("%s row %d (%s): purchase date %q is not a date", w.Table, w.Row, w.MedicationID, w.Value)
	}
	return fmt.Sprintf("%s row %d (%s): %s %q", w.Table, w.Row, w.MedicationID, w.Kind, w.Value)
}
