package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyValue = errors.New("empty value")
)

// truthy lists every token ParseBool accepts as true, compared after
// trimming and lower-casing.
var truthy = map[string]bool{
	"true": true,
	"t":    true,
	"1":    true,
	"yes":  true,
	"y":    true,
	"si":   true,
	"sì":   true,
	"vero": true,
	"x":    true,
	"on":   true,
}

// ParseBool reads the loose booleans people type into spreadsheet cells.
// Anything not in the truthy table, including an empty cell, is false.
func ParseBool(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}

// ParseDecimal parses a number written with either a decimal point or a
// decimal comma. When both separators appear the right-most one is the
// decimal separator and the other groups thousands ("1.234,5", "1,234.5").
func ParseDecimal(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, s)
	if clean == "" {
		return decimal.Zero, ErrEmptyValue
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") > 1 {
			return decimal.Zero, fmt.Errorf("ambiguous number %q", s)
		}
		clean = strings.Replace(clean, ",", ".", 1)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	return d, nil
}

// Frequency is a dosing recurrence.
type Frequency string

const (
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// ParseFrequency accepts "daily" and "weekly" plus their Italian spellings.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "giornaliera", "giornaliero":
		return Daily, true
	case "weekly", "settimanale":
		return Weekly, true
	}
	return "", false
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	time.RFC3339,
}

// ParseDate parses a calendar date and returns it at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyValue
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q", s)
}

// dateOf drops the clock part of t, keeping its calendar day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// countActiveDays counts the non-empty comma separated weekday tokens,
// never less than one.
func countActiveDays(s string) int {
	n := 0
	for _, tok := range strings.Split(s, ",") {
		if strings.TrimSpace(tok) != "" {
			n++
		}
	}
	if n < 1 {
		return 1
	}
	return n
}
