// Package tabular defines the row/column store contract shared by the
// spreadsheet and SQL worksheet backends.
package tabular

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrTableNotFound = errors.New("worksheet not found")
	ErrEmptyHeader   = errors.New("worksheet header row (row 1) is empty")
)

// Row maps header names to cell values.
type Row map[string]string

// Table is a worksheet read as a header plus header-keyed rows.
type Table struct {
	Name   string
	Header []string
	Rows   []Row
}

// Store reads and writes worksheets. The first row of every worksheet is
// its header.
type Store interface {
	Tables(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) (*Table, error)
	Write(ctx context.Context, name string, header []string, rows []Row) error
}

// HasColumn reports whether the header contains column.
func (t *Table) HasColumn(column string) bool {
	for _, h := range t.Header {
		if h == column {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can't mutate cached data.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:   t.Name,
		Header: append([]string(nil), t.Header...),
		Rows:   make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// FromValues builds a Table from a raw grid whose first row is the header.
// Short rows are padded with empty strings and fully blank rows are skipped.
func FromValues(name string, values [][]string) *Table {
	t := &Table{Name: name}
	if len(values) == 0 {
		return t
	}

	t.Header = trimTrailingEmpty(values[0])
	for _, raw := range values[1:] {
		if isBlank(raw) {
			continue
		}
		row := make(Row, len(t.Header))
		for i, col := range t.Header {
			if col == "" {
				continue
			}
			if i < len(raw) {
				row[col] = raw[i]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Project lays rows out under header. Columns missing from a row become
// empty strings; keys not in the header are dropped.
func Project(header []string, rows []Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(header))
		for i, col := range header {
			line[i] = r[col]
		}
		out = append(out, line)
	}
	return out
}

// Values returns header followed by the projected rows, the layout written
// back to a worksheet.
func Values(header []string, rows []Row) ([][]string, error) {
	if !HeaderValid(header) {
		return nil, ErrEmptyHeader
	}
	out := make([][]string, 0, len(rows)+1)
	out = append(out, append([]string(nil), header...))
	return append(out, Project(header, rows)...), nil
}

// HeaderValid reports whether header has at least one non-blank column.
func HeaderValid(header []string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) != "" {
			return true
		}
	}
	return false
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(values []string) []string {
	end := len(values)
	for end > 0 && strings.TrimSpace(values[end-1]) == "" {
		end--
	}
	return append([]string(nil), values[:end]...)
}
