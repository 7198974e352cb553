package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"supplies-portal/internal/database"
	"supplies-portal/internal/models"
)

type AuditRepository struct {
	db  *database.DB
	now func() time.Time
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db, now: time.Now}
}

// Log creates a new audit log entry
func (r *AuditRepository) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}

	query := r.db.Rebind(`
		INSERT INTO audit_logs (username, action, entity_type, entity_id, details, ip_address, user_agent, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowContext(ctx, query,
		entry.Username,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// LogAction logs an action with structured details
func (r *AuditRepository) LogAction(ctx context.Context, username, action, entityType, entityID string, details map[string]interface{}, ipAddress, userAgent string) error {
	var detailsJSON sql.NullString
	if details != nil {
		jsonBytes, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(jsonBytes), Valid: true}
	}

	entry := &models.AuditLog{
		Username:   nullString(username),
		Action:     action,
		EntityType: entityType,
		EntityID:   nullString(entityID),
		Details:    detailsJSON,
		IPAddress:  nullString(ipAddress),
		UserAgent:  nullString(userAgent),
	}
	return r.Log(ctx, entry)
}

// GetRecent retrieves the newest audit logs
func (r *AuditRepository) GetRecent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	query := r.db.Rebind(`
		SELECT id, username, action, entity_type, entity_id, details, ip_address, user_agent, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`)
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	defer rows.Close()

	return r.scanAuditLogs(rows)
}

// GetByUser retrieves audit logs for a specific user
func (r *AuditRepository) GetByUser(ctx context.Context, username string, limit, offset int) ([]*models.AuditLog, error) {
	query := r.db.Rebind(`
		SELECT id, username, action, entity_type, entity_id, details, ip_address, user_agent, timestamp
		FROM audit_logs
		WHERE username = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`)
	rows, err := r.db.QueryContext(ctx, query, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs by user: %w", err)
	}
	defer rows.Close()

	return r.scanAuditLogs(rows)
}

// CountFailedLoginsByIP counts failed login attempts from an IP since a cutoff
func (r *AuditRepository) CountFailedLoginsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*)
		FROM audit_logs
		WHERE action = ?
		  AND ip_address = ?
		  AND timestamp >= ?
	`)
	var count int
	err := r.db.QueryRowContext(ctx, query, models.ActionLoginFailed, ipAddress, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed logins by IP: %w", err)
	}
	return count, nil
}

// DeleteOlderThan deletes audit logs older than cutoff (for maintenance)
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM audit_logs WHERE timestamp < ?"), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (r *AuditRepository) scanAuditLogs(rows *sql.Rows) ([]*models.AuditLog, error) {
	var logs []*models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		err := rows.Scan(
			&log.ID,
			&log.Username,
			&log.Action,
			&log.EntityType,
			&log.EntityID,
			&log.Details,
			&log.IPAddress,
			&log.UserAgent,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
