package services

import (
	"time"

	"supplies-portal/internal/forecast"
)

// Severity of a reorder alert
const (
	SeverityOverdue = "overdue"
	SeverityDue     = "due"
)

// ReorderAlert flags a forecast item whose purchase-by date is close.
type ReorderAlert struct {
	Item     forecast.Item
	Severity string
	DaysLeft int // days from today to the purchase-by date; negative when overdue
}

// ReorderAlerts returns the items that should be bought within warnWithin
// days of the report date, or should already have been, in report order.
func ReorderAlerts(report *forecast.Report, warnWithin int) []ReorderAlert {
	if report == nil {
		return nil
	}

	var alerts []ReorderAlert
	for _, item := range report.Items {
		severity, daysLeft, ok := classify(item, report.Today, warnWithin)
		if !ok {
			continue
		}
		alerts = append(alerts, ReorderAlert{Item: item, Severity: severity, DaysLeft: daysLeft})
	}
	return alerts
}

// NeedsReorder reports whether the item falls inside the warning window.
func NeedsReorder(item forecast.Item, today time.Time, warnWithin int) bool {
	_, _, ok := classify(item, today, warnWithin)
	return ok
}

func classify(item forecast.Item, today time.Time, warnWithin int) (string, int, bool) {
	if item.PurchaseByDate == nil {
		return "", 0, false
	}
	daysLeft := int(item.PurchaseByDate.Sub(today).Hours() / 24)
	switch {
	case daysLeft < 0:
		return SeverityOverdue, daysLeft, true
	case daysLeft <= warnWithin:
		return SeverityDue, daysLeft, true
	}
	return "", daysLeft, false
}
