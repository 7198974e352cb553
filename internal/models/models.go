package models

import (
	"database/sql"
	"time"
)

// Audit actions
const (
	ActionLoginSuccess   = "login_success"
	ActionLoginFailed    = "login_failed"
	ActionLogout         = "logout"
	ActionWorksheetSaved = "worksheet_saved"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID         int64
	Username   sql.NullString
	Action     string
	EntityType string
	EntityID   sql.NullString
	Details    sql.NullString
	IPAddress  sql.NullString
	UserAgent  sql.NullString
	Timestamp  time.Time
}

// WorksheetInfo summarises a stored worksheet
type WorksheetInfo struct {
	Name      string    `json:"name"`
	Columns   int       `json:"columns"`
	Rows      int       `json:"rows"`
	UpdatedAt time.Time `json:"updated_at"`
}
