package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	ran, err := db.RunMigrations(ctx)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("Expected 2 migrations applied, got %v", ran)
	}

	ran, err = db.RunMigrations(ctx)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("Expected no migrations on second run, got %v", ran)
	}

	for _, table := range []string{"worksheets", "worksheet_rows", "audit_logs"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist: %v", table, err)
		}
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"

	sqlite := &DB{Driver: DriverSQLite}
	if got := sqlite.Rebind(q); got != q {
		t.Errorf("sqlite query should be unchanged, got %q", got)
	}

	pg := &DB{Driver: DriverPostgres}
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got := pg.Rebind(q); got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}
