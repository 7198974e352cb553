package web

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// formatDate formats a date as YYYY-MM-DD, or "-" when unset
func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// formatDecimal rounds to two places and drops a zero fraction
func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).String()
}

// formatDays formats the days-remaining estimate, which is unset for
// items nobody is consuming
func formatDays(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(1)
}

// severityClass returns the row CSS class for a reorder severity
func severityClass(severity string) string {
	switch severity {
	case "overdue":
		return "row-overdue"
	case "due":
		return "row-due"
	}
	return ""
}

// cellName is the form field name of a grid cell
func cellName(row, col int) string {
	return fmt.Sprintf("cell-%d-%d", row, col)
}
