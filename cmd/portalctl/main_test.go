package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"supplies-portal/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv points the CLI at a fresh SQLite database using the database
// backend and returns the temp directory.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "portal.db"))
	t.Setenv("STORE_BACKEND", "database")
	t.Setenv("SECRETS_PATH", filepath.Join(dir, "secrets.toml"))
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LEAD_TIME_DAYS", "7")
	t.Setenv("WARN_WITHIN_DAYS", "14")
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "", "hash-password", "correct-horse")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2a$"), "unexpected hash %q", hash)
	assert.NoError(t, auth.VerifyPassword(hash, "correct-horse"))

	out, err = run(t, "from-stdin-pw\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, auth.VerifyPassword(strings.TrimSpace(out), "from-stdin-pw"))

	_, err = run(t, "", "hash-password", "short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	_, err = run(t, "", "hash-password")
	assert.Error(t, err)
}

func TestGenSecret(t *testing.T) {
	first, err := run(t, "", "gen-secret")
	require.NoError(t, err)
	second, err := run(t, "", "gen-secret")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(strings.TrimSpace(first)), 32)
	assert.NotEqual(t, first, second)
}

func TestUsers(t *testing.T) {
	dir := setupEnv(t)
	writeFile(t, dir, "secrets.toml", `
[auth.credentials.usernames.mario]
name = "Mario Rossi"
password = "$2a$12$abcdefghijklmnopqrstuv"

[auth.credentials.usernames.anna]
password = "$2a$12$abcdefghijklmnopqrstuv"
`)

	out, err := run(t, "", "users", "--json")
	require.NoError(t, err)

	var users []struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "anna", users[0].Username)
	assert.Equal(t, "anna", users[0].Name)
	assert.Equal(t, "mario", users[1].Username)
	assert.Equal(t, "Mario Rossi", users[1].Name)
}

func TestUsers_MissingSecrets(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "", "users")
	assert.ErrorContains(t, err, "not found")
}

func TestWorksheets_InitImportExport(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "", "worksheets", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "FARMACI")
	assert.Contains(t, out, "LISTE")

	out, err = run(t, "", "worksheets", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exist")

	csvPath := writeFile(t, dir, "farmaci.csv", "medication_id,display_name,notes\nM1,\"Aspirin, 100mg\",\n\nM2,Vitamin D,weekly\n")
	out, err = run(t, "", "worksheets", "import", "FARMACI", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rows into FARMACI")

	out, err = run(t, "", "worksheets", "export", "FARMACI")
	require.NoError(t, err)
	assert.Equal(t, "medication_id,display_name,notes\nM1,\"Aspirin, 100mg\",\nM2,Vitamin D,weekly\n", out)

	out, err = run(t, "", "worksheets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "FARMACI") {
			assert.Equal(t, []string{"FARMACI", "3", "2"}, strings.Fields(line)[:3])
		}
	}

	out, err = run(t, "", "worksheets", "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "POSOLOGIA"`)
}

func TestWorksheets_ImportRejectsEmptyHeader(t *testing.T) {
	dir := setupEnv(t)
	csvPath := writeFile(t, dir, "blank.csv", ",,\nM1,x,y\n")

	_, err := run(t, "", "worksheets", "import", "FARMACI", csvPath)
	assert.ErrorContains(t, err, "no usable header row")
}

func TestWorksheets_DatabaseOnly(t *testing.T) {
	setupEnv(t)
	t.Setenv("STORE_BACKEND", "memory")

	_, err := run(t, "", "worksheets", "init")
	assert.ErrorIs(t, err, errDatabaseOnly)
}

func TestForecast(t *testing.T) {
	dir := setupEnv(t)
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	imports := map[string]string{
		"FARMACI":    "medication_id,display_name\nM1,Medicine one\nM2,Stocked up\n",
		"POSOLOGIA":  "medication_id,dose_amount,unit,frequency,active_days,is_active\nM1,2,tablet,daily,,yes\nM2,1,tablet,weekly,,yes\nM3,abc,tablet,daily,,yes\n",
		"INVENTARIO": "medication_id,purchase_date,quantity,units_per_package\nM1," + yesterday + ",30,\nM2," + yesterday + ",10,100\n",
	}
	for name, content := range imports {
		path := writeFile(t, dir, strings.ToLower(name)+".csv", content)
		_, err := run(t, "", "worksheets", "import", name, path)
		require.NoError(t, err)
	}

	out, err := run(t, "", "forecast", "--json")
	require.NoError(t, err)

	var result forecastOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), result.Today)

	byID := map[string]forecastRow{}
	for _, item := range result.Items {
		byID[item.MedicationID] = item
	}
	require.Contains(t, byID, "M1")
	require.Contains(t, byID, "M2")
	assert.Equal(t, "due", byID["M1"].Reorder)
	assert.Empty(t, byID["M2"].Reorder)
	assert.Equal(t, "Medicine one", byID["M1"].DisplayName)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "M3", result.Warnings[0].MedicationID)

	out, err = run(t, "", "forecast", "--reorder")
	require.NoError(t, err)
	assert.Contains(t, out, "Medicine one")
	assert.NotContains(t, out, "Stocked up")
	assert.Contains(t, out, "Skipped rows:")
}

func TestForecast_MissingColumns(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, "", "worksheets", "init")
	require.NoError(t, err)

	path := writeFile(t, dir, "farmaci.csv", "medication_id\nM1\n")
	_, err = run(t, "", "worksheets", "import", "FARMACI", path)
	require.NoError(t, err)

	_, err = run(t, "", "forecast")
	assert.ErrorContains(t, err, "farmaci.display_name")
}

func TestAudit(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "audit", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No audit entries.")

	out, err = run(t, "", "audit", "prune", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 audit entries")

	_, err = run(t, "", "audit", "prune", "--days", "0")
	assert.Error(t, err)
	_, err = run(t, "", "audit", "list", "--limit", "0")
	assert.Error(t, err)
}
