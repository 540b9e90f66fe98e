// Package audit keeps a queryable trail of notification delivery attempts
// in the delivery_log table.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sep2-core/internal/infrastructure/database"
)

// List page bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// DeliveryLog is one recorded delivery attempt.
type DeliveryLog struct {
	ID               string    `json:"id"`
	NotificationID   string    `json:"notification_id"`
	SubscriptionHref string    `json:"subscription_href"`
	ResourceType     string    `json:"resource_type"`
	Attempt          int       `json:"attempt"`
	Outcome          string    `json:"outcome"`
	StatusCode       int       `json:"status_code,omitempty"`
	LatencyMS        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Filter controls which delivery logs to return.
type Filter struct {
	NotificationID string // optional: every attempt of one notification
	Outcome        string // optional: sent, retry or abandoned
	Limit          int    // default 50, max 200
	Offset         int
}

// ListResult contains a page of delivery logs.
type ListResult struct {
	Logs   []DeliveryLog `json:"logs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Repository defines the delivery log operations.
type Repository interface {
	Create(ctx context.Context, log *DeliveryLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores delivery logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new delivery log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a delivery log entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, log *DeliveryLog) error {
	if log.ID == "" {
		log.ID = "dlv-" + uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_log (id, notification_id, subscription_href, resource_type,
			attempt, outcome, status_code, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.NotificationID, log.SubscriptionHref, log.ResourceType,
		log.Attempt, log.Outcome, nullableInt(log.StatusCode), log.LatencyMS,
		database.FormatTime(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}
	return nil
}

// nullableInt stores zero as NULL.
func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

// List returns delivery logs matching the filter, most recent first.
// Attempts recorded in the same instant are ordered by attempt number,
// highest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	filter.Limit = min(filter.Limit, maxListLimit)
	filter.Offset = max(filter.Offset, 0)

	var conditions []string
	var args []any
	if filter.NotificationID != "" {
		conditions = append(conditions, "notification_id = ?")
		args = append(args, filter.NotificationID)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM delivery_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting delivery logs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, notification_id, subscription_href, resource_type, attempt, outcome,
			status_code, latency_ms, created_at
		 FROM delivery_log %s ORDER BY created_at DESC, attempt DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery logs: %w", err)
	}
	defer rows.Close()

	logs := []DeliveryLog{}
	for rows.Next() {
		var log DeliveryLog
		var status sql.NullInt64
		var createdAt string
		if err := rows.Scan(&log.ID, &log.NotificationID, &log.SubscriptionHref, &log.ResourceType,
			&log.Attempt, &log.Outcome, &status, &log.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning delivery log: %w", err)
		}
		log.StatusCode = int(status.Int64)
		if log.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
