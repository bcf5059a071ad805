// Package audit stores and lists the relay's command history in the
// audit_logs table.
//
// History is write-only from the relay's point of view: rows are never
// read back to restore device state.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Values written to the action and entity_type columns.
const (
	ActionCommand   = "command"
	EntityTypeFleet = "fleet"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout has fixed-width fractional seconds so created_at sorts
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrInvalidLog is returned by Create for entries missing required fields.
var ErrInvalidLog = errors.New("audit: invalid log entry")

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return. Empty fields match anything.
type Filter struct {
	Action   string
	EntityID string // command name for command rows
	UserID   string
	Source   string // chat transport: discord, mqtt
	Since    time.Time
	Limit    int // default 50, max 200
	Offset   int
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository reads and writes audit logs in SQLite.
//
// Thread Safety:
//   - Safe for concurrent use; serialisation is left to database/sql.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a new audit log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new audit log entry. ID and CreatedAt are generated when
// empty and written back to log.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log == nil || log.Action == "" || log.EntityType == "" || log.Source == "" {
		return fmt.Errorf("%w: action, entity_type and source are required", ErrInvalidLog)
	}
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var detailsJSON *string
	if log.Details != nil {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Action, log.EntityType,
		nullableString(log.EntityID), nullableString(log.UserID),
		log.Source, detailsJSON,
		log.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit logs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := filter.whereClause()

	countQuery := "SELECT COUNT(*) FROM audit_logs" + where //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	query := "SELECT id, action, entity_type, entity_id, user_id, source, details, created_at FROM audit_logs" + //nolint:gosec // WHERE built from parameterised conditions, not user input
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// whereClause returns " WHERE ..." (or "") with its positional arguments.
func (f Filter) whereClause() (string, []any) {
	var conditions []string
	var args []any

	add := func(column, value string) {
		if value != "" {
			conditions = append(conditions, column+" = ?")
			args = append(args, value)
		}
	}
	add("action", f.Action)
	add("entity_id", f.EntityID)
	add("user_id", f.UserID)
	add("source", f.Source)

	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanLog(rows *sql.Rows) (AuditLog, error) {
	var entry AuditLog
	var entityID, userID, detailsJSON sql.NullString
	var createdAt string

	if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType,
		&entityID, &userID, &entry.Source, &detailsJSON, &createdAt); err != nil {
		return AuditLog{}, fmt.Errorf("scanning audit log: %w", err)
	}

	entry.EntityID = entityID.String
	entry.UserID = userID.String
	if detailsJSON.Valid && detailsJSON.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detailsJSON.String), &details) == nil {
			entry.Details = details
		}
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	entry.CreatedAt = t
	return entry, nil
}
