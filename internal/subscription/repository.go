package subscription

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/sep2-core/internal/infrastructure/database"
	"github.com/nerrad567/sep2-core/internal/resource"
)

// Repository is the read side of subscription persistence used by the
// notification pipeline and the API. Subscriptions are written by the
// server that owns them; SQLiteRepository.Create exists for seeding.
type Repository interface {
	// ListForAggregator returns the aggregator's subscriptions to rt with
	// conditions populated, ordered by ID.
	ListForAggregator(ctx context.Context, aggregatorID int64, rt resource.ResourceType) ([]Subscription, error)

	// ListByAggregator returns every subscription the aggregator holds.
	ListByAggregator(ctx context.Context, aggregatorID int64) ([]Subscription, error)

	// GetByID returns ErrSubscriptionNotFound if the subscription does not exist.
	GetByID(ctx context.Context, id int64) (*Subscription, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectSubscription = `
	SELECT subscription_id, aggregator_id, resource_type, resource_id, scoped_site_id,
		notification_uri, entity_limit, changed_time
	FROM subscription`

// ListForAggregator returns the aggregator's subscriptions to one resource type.
func (r *SQLiteRepository) ListForAggregator(ctx context.Context, aggregatorID int64, rt resource.ResourceType) ([]Subscription, error) {
	return r.list(ctx, "aggregator_id = ? AND resource_type = ?", aggregatorID, int(rt))
}

// ListByAggregator returns all of the aggregator's subscriptions.
func (r *SQLiteRepository) ListByAggregator(ctx context.Context, aggregatorID int64) ([]Subscription, error) {
	return r.list(ctx, "aggregator_id = ?", aggregatorID)
}

// GetByID retrieves one subscription with its conditions.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Subscription, error) {
	subs, err := r.list(ctx, "subscription_id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrSubscriptionNotFound
	}
	return &subs[0], nil
}

// list loads the subscriptions matching where, then their conditions in a
// second query over the same predicate.
func (r *SQLiteRepository) list(ctx context.Context, where string, args ...any) ([]Subscription, error) {
	rows, err := r.db.QueryContext(ctx, selectSubscription+" WHERE "+where+" ORDER BY subscription_id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	index := make(map[int64]int)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		index[sub.ID] = len(subs)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	condRows, err := r.db.QueryContext(ctx, `
		SELECT subscription_id, attribute, lower_threshold, upper_threshold
		FROM subscription_condition
		WHERE subscription_id IN (SELECT subscription_id FROM subscription WHERE `+where+`)
		ORDER BY subscription_id, subscription_condition_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscription conditions: %w", err)
	}
	defer condRows.Close()

	for condRows.Next() {
		var (
			subID        int64
			c            Condition
			lower, upper sql.NullInt64
		)
		if err := condRows.Scan(&subID, &c.Attribute, &lower, &upper); err != nil {
			return nil, fmt.Errorf("scanning subscription condition: %w", err)
		}
		if lower.Valid {
			c.LowerThreshold = &lower.Int64
		}
		if upper.Valid {
			c.UpperThreshold = &upper.Int64
		}
		if i, ok := index[subID]; ok {
			subs[i].Conditions = append(subs[i].Conditions, c)
		}
	}
	if err := condRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscription conditions: %w", err)
	}
	return subs, nil
}

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var (
		sub                Subscription
		rt                 int
		resourceID, siteID sql.NullInt64
		changed            string
	)
	if err := row.Scan(&sub.ID, &sub.AggregatorID, &rt, &resourceID, &siteID,
		&sub.NotificationURI, &sub.EntityLimit, &changed); err != nil {
		return Subscription{}, fmt.Errorf("scanning subscription: %w", err)
	}
	sub.ResourceType = resource.ResourceType(rt)
	if resourceID.Valid {
		sub.ResourceID = &resourceID.Int64
	}
	if siteID.Valid {
		sub.ScopedSiteID = &siteID.Int64
	}
	t, err := database.ParseTime(changed)
	if err != nil {
		return Subscription{}, err
	}
	sub.ChangedTime = t
	return sub, nil
}

// Create inserts sub and its conditions in one transaction, setting
// sub.ID. It is a seeding helper for fixtures and admin tooling; it is
// not part of Repository.
//
// Parameters:
//   - ctx: Context for the transaction
//   - sub: Subscription to insert; a zero ChangedTime is set to now
//
// Returns:
//   - error: ErrInvalidSubscription if sub fails validation or names an
//     unknown aggregator, otherwise any database error
func (r *SQLiteRepository) Create(ctx context.Context, sub *Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if sub.ChangedTime.IsZero() {
		sub.ChangedTime = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO subscription (aggregator_id, resource_type, resource_id, scoped_site_id,
			notification_uri, entity_limit, changed_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.AggregatorID, int(sub.ResourceType), nullInt(sub.ResourceID), nullInt(sub.ScopedSiteID),
		sub.NotificationURI, sub.EntityLimit, database.FormatTime(sub.ChangedTime),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: aggregator %d does not exist", ErrInvalidSubscription, sub.AggregatorID)
		}
		return fmt.Errorf("inserting subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading subscription id: %w", err)
	}

	for _, c := range sub.Conditions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_condition (subscription_id, attribute, lower_threshold, upper_threshold)
			VALUES (?, ?, ?, ?)`,
			id, int(c.Attribute), nullInt(c.LowerThreshold), nullInt(c.UpperThreshold),
		); err != nil {
			return fmt.Errorf("inserting subscription condition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing subscription: %w", err)
	}
	sub.ID = id
	return nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
