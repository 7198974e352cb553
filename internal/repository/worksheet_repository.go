package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"supplies-portal/internal/database"
	"supplies-portal/internal/models"
	"supplies-portal/internal/tabular"
)

var ErrWorksheetExists = errors.New("worksheet already exists")

// WorksheetRepository stores worksheets in SQL: one row per worksheet
// holding its header, and one row per data row holding the cells as a JSON
// array aligned with that header.
type WorksheetRepository struct {
	db  *database.DB
	now func() time.Time
}

func NewWorksheetRepository(db *database.DB) *WorksheetRepository {
	return &WorksheetRepository{db: db, now: time.Now}
}

// Tables lists worksheet names in creation order
func (r *WorksheetRepository) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM worksheets ORDER BY position, name")
	if err != nil {
		return nil, fmt.Errorf("failed to list worksheets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan worksheet name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Read loads a worksheet. Fully blank rows are skipped.
func (r *WorksheetRepository) Read(ctx context.Context, name string) (*tabular.Table, error) {
	var headerJSON string
	err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT header FROM worksheets WHERE name = ?"), name).Scan(&headerJSON)
	if err == sql.ErrNoRows {
		return nil, tabular.ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worksheet: %w", err)
	}

	header, err := decodeCells(headerJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode worksheet header: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		r.db.Rebind("SELECT cells FROM worksheet_rows WHERE worksheet = ? ORDER BY position"), name)
	if err != nil {
		return nil, fmt.Errorf("failed to get worksheet rows: %w", err)
	}
	defer rows.Close()

	values := [][]string{header}
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan worksheet row: %w", err)
		}
		cells, err := decodeCells(cellsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode worksheet row: %w", err)
		}
		values = append(values, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tabular.FromValues(name, values), nil
}

// Write replaces the header and all rows of an existing worksheet in a
// single transaction.
func (r *WorksheetRepository) Write(ctx context.Context, name string, header []string, rows []tabular.Row) error {
	values, err := tabular.Values(header, rows)
	if err != nil {
		return err
	}
	headerJSON, err := json.Marshal(values[0])
	if err != nil {
		return fmt.Errorf("failed to encode worksheet header: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			r.db.Rebind("UPDATE worksheets SET header = ?, updated_at = ? WHERE name = ?"),
			string(headerJSON), r.now().UTC(), name)
		if err != nil {
			return fmt.Errorf("failed to update worksheet: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 0 {
			return tabular.ErrTableNotFound
		}

		if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM worksheet_rows WHERE worksheet = ?"), name); err != nil {
			return fmt.Errorf("failed to clear worksheet rows: %w", err)
		}
		return r.insertRows(ctx, tx, name, values[1:])
	})
}

// Create adds an empty worksheet with the given header.
func (r *WorksheetRepository) Create(ctx context.Context, name string, header []string) error {
	if !tabular.HeaderValid(header) {
		return tabular.ErrEmptyHeader
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode worksheet header: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM worksheets WHERE name = ?"), name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check worksheet: %w", err)
		}
		if exists > 0 {
			return ErrWorksheetExists
		}

		var position int
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) + 1 FROM worksheets").Scan(&position); err != nil {
			return fmt.Errorf("failed to get worksheet position: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			r.db.Rebind("INSERT INTO worksheets (name, header, position, updated_at) VALUES (?, ?, ?, ?)"),
			name, string(headerJSON), position, r.now().UTC())
		if err != nil {
			return fmt.Errorf("failed to create worksheet: %w", err)
		}
		return nil
	})
}

// Import creates the worksheet if needed and replaces its contents.
func (r *WorksheetRepository) Import(ctx context.Context, t *tabular.Table) error {
	err := r.Create(ctx, t.Name, t.Header)
	if err != nil && !errors.Is(err, ErrWorksheetExists) {
		return err
	}
	return r.Write(ctx, t.Name, t.Header, t.Rows)
}

// List returns a summary of every worksheet
func (r *WorksheetRepository) List(ctx context.Context) ([]models.WorksheetInfo, error) {
	query := `
		SELECT w.name, w.header, w.updated_at,
			(SELECT COUNT(*) FROM worksheet_rows wr WHERE wr.worksheet = w.name)
		FROM worksheets w
		ORDER BY w.position, w.name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list worksheets: %w", err)
	}
	defer rows.Close()

	var infos []models.WorksheetInfo
	for rows.Next() {
		var info models.WorksheetInfo
		var headerJSON string
		if err := rows.Scan(&info.Name, &headerJSON, &info.UpdatedAt, &info.Rows); err != nil {
			return nil, fmt.Errorf("failed to scan worksheet: %w", err)
		}
		header, err := decodeCells(headerJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode worksheet header: %w", err)
		}
		info.Columns = len(header)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (r *WorksheetRepository) insertRows(ctx context.Context, tx *sql.Tx, name string, values [][]string) error {
	stmt, err := tx.PrepareContext(ctx,
		r.db.Rebind("INSERT INTO worksheet_rows (worksheet, position, cells) VALUES (?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, cells := range values {
		cellsJSON, err := json.Marshal(cells)
		if err != nil {
			return fmt.Errorf("failed to encode worksheet row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, name, i+1, string(cellsJSON)); err != nil {
			return fmt.Errorf("failed to insert worksheet row: %w", err)
		}
	}
	return nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, err
	}
	return cells, nil
}
