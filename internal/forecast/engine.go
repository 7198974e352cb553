// Package forecast estimates when tracked medications run out, replaying the
// purchase ledger against the consumption implied by active dosing rules.
package forecast

import (
	"sort"
	"time"

	"supplies-portal/internal/tabular"

	"github.com/shopspring/decimal"
)

var daysPerWeek = decimal.NewFromInt(7)

// MaxHorizonDays bounds the dated forecast. Items lasting longer keep their
// DaysRemaining but get no run-out or purchase-by date.
const MaxHorizonDays = 100 * 365

var maxHorizon = decimal.NewFromInt(MaxHorizonDays)

// Input is everything one forecast run needs. The engine performs no I/O.
type Input struct {
	Medications *tabular.Table
	Schedules   *tabular.Table
	Purchases   *tabular.Table

	Today        time.Time
	LeadTimeDays int
}

// Item is the forecast for one (medication, unit) pair. DaysRemaining,
// RunoutDate and PurchaseByDate are unset when the item is not consumed;
// the dates are also unset beyond MaxHorizonDays.
type Item struct {
	MedicationID      string
	DisplayName       string
	Unit              string
	WeeklyConsumption decimal.Decimal
	DailyConsumption  decimal.Decimal
	CurrentStock      decimal.Decimal
	DaysRemaining     decimal.NullDecimal
	RunoutDate        *time.Time
	PurchaseByDate    *time.Time
}

// Report is the result of a forecast run.
type Report struct {
	Today        time.Time
	LeadTimeDays int
	Items        []Item
	Warnings     []Warning
}

type groupKey struct {
	medicationID string
	unit         string
}

// Compute runs the forecast. It returns *MissingColumnsError, and nothing
// else, when an input worksheet lacks a required column.
func Compute(in Input) (*Report, error) {
	meds := orEmpty(in.Medications, "medications")
	schedules := orEmpty(in.Schedules, "dose_schedule")
	purchases := orEmpty(in.Purchases, "purchase_log")

	if err := checkColumns(meds, schedules, purchases); err != nil {
		return nil, err
	}

	today := dateOf(in.Today)
	leadTime := in.LeadTimeDays
	if leadTime < 0 {
		leadTime = 0
	}

	report := &Report{Today: today, LeadTimeDays: leadTime}

	catalog := DecodeMedications(meds)
	rules, warnings := DecodeSchedules(schedules)
	report.Warnings = append(report.Warnings, warnings...)
	ledger, warnings := DecodePurchases(purchases, today)
	report.Warnings = append(report.Warnings, warnings...)

	// Weekly consumption per (medication, unit), in first-seen order.
	var keys []groupKey
	weekly := make(map[groupKey]decimal.Decimal)
	for _, rule := range rules {
		k := groupKey{rule.MedicationID, rule.Unit}
		if _, ok := weekly[k]; !ok {
			keys = append(keys, k)
			weekly[k] = decimal.Zero
		}
		weekly[k] = weekly[k].Add(rule.WeeklyUnits())
	}

	byMed := make(map[string][]Purchase)
	var purchaseOrder []string
	for _, p := range ledger {
		if p.Date.After(today) {
			continue
		}
		if _, ok := byMed[p.MedicationID]; !ok {
			purchaseOrder = append(purchaseOrder, p.MedicationID)
		}
		byMed[p.MedicationID] = append(byMed[p.MedicationID], p)
	}

	scheduled := make(map[string]bool, len(keys))
	for _, k := range keys {
		scheduled[k.medicationID] = true
	}
	for _, id := range purchaseOrder {
		if !scheduled[id] {
			k := groupKey{medicationID: id}
			keys = append(keys, k)
			weekly[k] = decimal.Zero
		}
	}

	for _, k := range keys {
		w := weekly[k]
		daily := w.Div(daysPerWeek)
		item := Item{
			MedicationID:      k.medicationID,
			DisplayName:       catalog[k.medicationID].DisplayName,
			Unit:              k.unit,
			WeeklyConsumption: w,
			DailyConsumption:  daily,
			CurrentStock:      ReplayStock(byMed[k.medicationID], daily, today),
		}

		if daily.IsPositive() {
			days := item.CurrentStock.Div(daily)
			item.DaysRemaining = decimal.NullDecimal{Decimal: days, Valid: true}
			if days.LessThanOrEqual(maxHorizon) {
				runout := today.AddDate(0, 0, int(days.Floor().IntPart()))
				purchaseBy := runout.AddDate(0, 0, -leadTime)
				item.RunoutDate = &runout
				item.PurchaseByDate = &purchaseBy
			}
		}

		report.Items = append(report.Items, item)
	}

	SortItems(report.Items)
	return report, nil
}

// ReplayStock reconstructs the stock on hand at today. Purchases after today
// are ignored, same-day purchases are summed, and between events the stock
// drains at the daily rate without going below zero. Stock before the first
// recorded purchase is assumed to be zero.
func ReplayStock(purchases []Purchase, daily decimal.Decimal, today time.Time) decimal.Decimal {
	perDay := make(map[time.Time]decimal.Decimal)
	for _, p := range purchases {
		if p.Date.After(today) {
			continue
		}
		perDay[p.Date] = perDay[p.Date].Add(p.Quantity)
	}
	if len(perDay) == 0 {
		return decimal.Zero
	}

	dates := make([]time.Time, 0, len(perDay))
	for d := range perDay {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if !daily.IsPositive() {
		total := decimal.Zero
		for _, d := range dates {
			total = floorZero(total.Add(perDay[d]))
		}
		return total
	}

	stock := decimal.Zero
	last := dates[0]
	for _, d := range dates {
		if d.After(last) {
			stock = deplete(stock, daily, daysBetween(last, d))
		}
		stock = floorZero(stock.Add(perDay[d]))
		last = d
	}
	return deplete(stock, daily, daysBetween(last, today))
}

func deplete(stock, daily decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 {
		return stock
	}
	return floorZero(stock.Sub(daily.Mul(decimal.NewFromInt(int64(days)))))
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// SortItems orders items by run-out date, undated items last, then by
// display name. Equal items keep their relative order.
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].RunoutDate, items[j].RunoutDate
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return items[i].DisplayName < items[j].DisplayName
	})
}

func checkColumns(meds, schedules, purchases *tabular.Table) error {
	var missing []QualifiedColumn
	for _, check := range []struct {
		table    *tabular.Table
		required []string
	}{
		{meds, MedicationColumns},
		{schedules, ScheduleColumns},
		{purchases, PurchaseColumns},
	} {
		for _, col := range check.required {
			if !check.table.HasColumn(col) {
				missing = append(missing, QualifiedColumn{Table: check.table.Name, Column: col})
			}
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing}
	}
	return nil
}

func orEmpty(t *tabular.Table, name string) *tabular.Table {
	if t == nil {
		return &tabular.Table{Name: name}
	}
	return t
}
