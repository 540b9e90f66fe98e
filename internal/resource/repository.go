package resource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/sep2-core/internal/infrastructure/database"
)

// Repository loads watched entities by the timestamp of the write that
// touched them. Results are fully hydrated and ordered by primary key.
type Repository interface {
	// FetchChangedAt returns every live entity of rt whose changed_time
	// equals at exactly.
	FetchChangedAt(ctx context.Context, rt ResourceType, at time.Time) ([]Entity, error)

	// FetchDeletedAt returns the archived state of every entity of rt
	// whose deleted_time equals at exactly.
	FetchDeletedAt(ctx context.Context, rt ResourceType, at time.Time) ([]Entity, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// source names the table a fetch reads and the column it matches on.
type source struct {
	table  string
	column string
}

var (
	changedSources = map[ResourceType]source{
		TypeSite:                     {"site", "changed_time"},
		TypeReading:                  {"site_reading", "changed_time"},
		TypeDynamicOperatingEnvelope: {"dynamic_operating_envelope", "changed_time"},
		TypeTariffGeneratedRate:      {"tariff_generated_rate", "changed_time"},
	}
	deletedSources = map[ResourceType]source{
		TypeSite:                     {"archive_site", "deleted_time"},
		TypeReading:                  {"archive_site_reading", "deleted_time"},
		TypeDynamicOperatingEnvelope: {"archive_dynamic_operating_envelope", "deleted_time"},
		TypeTariffGeneratedRate:      {"archive_tariff_generated_rate", "deleted_time"},
	}
)

// FetchChangedAt returns live entities written at exactly at.
//
// Every entity saved by one write shares its changed_time, so at selects
// that write's entities and nothing else.
//
// Parameters:
//   - ctx: Context for the query
//   - rt: Resource type to load
//   - at: changed_time of the write; compared as stored UTC text
//
// Returns:
//   - []Entity: Matching entities with their site, ordered by ID
//   - error: ErrUnsupportedResource, or any query failure
func (r *SQLiteRepository) FetchChangedAt(ctx context.Context, rt ResourceType, at time.Time) ([]Entity, error) {
	src, ok := changedSources[rt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResource, rt)
	}
	return r.fetch(ctx, rt, src, at)
}

// FetchDeletedAt returns archived entities deleted at exactly at.
//
// Parameters:
//   - ctx: Context for the query
//   - rt: Resource type to load
//   - at: deleted_time recorded on the archive rows
//
// Returns:
//   - []Entity: Matching archived entities with their site, live or archived
//   - error: ErrUnsupportedResource, or any query failure
func (r *SQLiteRepository) FetchDeletedAt(ctx context.Context, rt ResourceType, at time.Time) ([]Entity, error) {
	src, ok := deletedSources[rt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResource, rt)
	}
	return r.fetch(ctx, rt, src, at)
}

// Site columns as selected through the site_any view, aliased s.
const siteColumns = `s.site_id, s.aggregator_id, s.nmi, s.lfdi, s.sfdi, s.device_category, s.timezone_id, s.changed_time`

// fetch loads the entities of rt from src whose timestamp column equals at.
//
// Steps:
//  1. Pick the query and scanner for rt; child rows join site_any
//  2. Query with at formatted as stored
//  3. Scan every row into an Entity
func (r *SQLiteRepository) fetch(ctx context.Context, rt ResourceType, src source, at time.Time) ([]Entity, error) {
	var query string
	var scan func(rowScanner) (Entity, error)

	switch rt {
	case TypeSite:
		// Sites are their own owner, so select straight from the source with the s alias.
		query = fmt.Sprintf(`SELECT %s FROM %s s WHERE s.%s = ? ORDER BY s.site_id`,
			siteColumns, src.table, src.column)
		scan = func(row rowScanner) (Entity, error) {
			return scanSite(row)
		}
	case TypeReading:
		query = fmt.Sprintf(`
			SELECT e.site_reading_id, e.local_id, e.quality_flags, e.time_period_start,
				e.time_period_seconds, e.value, e.changed_time,
				t.site_reading_type_id, t.uom, t.data_qualifier, t.flow_direction, t.kind,
				t.phase, t.power_of_ten_multiplier, t.default_interval_seconds, t.changed_time,
				%s
			FROM %s e
			JOIN site_reading_type_any t ON t.site_reading_type_id = e.site_reading_type_id
			JOIN site_any s ON s.site_id = t.site_id
			WHERE e.%s = ?
			ORDER BY e.site_reading_id`, siteColumns, src.table, src.column)
		scan = scanReading
	case TypeDynamicOperatingEnvelope:
		query = fmt.Sprintf(`
			SELECT e.dynamic_operating_envelope_id, e.start_time, e.duration_seconds,
				e.import_limit_active_watts, e.export_limit_watts, e.changed_time,
				%s
			FROM %s e
			JOIN site_any s ON s.site_id = e.site_id
			WHERE e.%s = ?
			ORDER BY e.dynamic_operating_envelope_id`, siteColumns, src.table, src.column)
		scan = scanDOE
	case TypeTariffGeneratedRate:
		query = fmt.Sprintf(`
			SELECT e.tariff_generated_rate_id, e.tariff_id, e.start_time, e.duration_seconds,
				e.import_active_price, e.export_active_price,
				e.import_reactive_price, e.export_reactive_price, e.changed_time,
				%s
			FROM %s e
			JOIN site_any s ON s.site_id = e.site_id
			WHERE e.%s = ?
			ORDER BY e.tariff_generated_rate_id`, siteColumns, src.table, src.column)
		scan = scanRate
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResource, rt)
	}

	// Query
	rows, err := r.db.QueryContext(ctx, query, database.FormatTime(at))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", src.table, err)
	}
	defer rows.Close()

	// Scan
	var entities []Entity
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", src.table, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", src.table, err)
	}
	return entities, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// siteDest collects the trailing site columns of a row.
type siteDest struct {
	site    Site
	nmi     sql.NullString
	changed string
}

func (d *siteDest) targets() []any {
	return []any{
		&d.site.SiteID, &d.site.AggregatorID, &d.nmi, &d.site.LFDI, &d.site.SFDI,
		&d.site.DeviceCategory, &d.site.TimezoneID, &d.changed,
	}
}

func (d *siteDest) finish() (Site, error) {
	d.site.NMI = d.nmi.String
	changed, err := database.ParseTime(d.changed)
	if err != nil {
		return Site{}, err
	}
	d.site.ChangedTime = changed
	return d.site, nil
}

func scanSite(row rowScanner) (Site, error) {
	var d siteDest
	if err := row.Scan(d.targets()...); err != nil {
		return Site{}, err
	}
	return d.finish()
}

func scanReading(row rowScanner) (Entity, error) {
	var (
		e                              Reading
		localID                        sql.NullInt64
		periodStart, changed, rtChange string
		d                              siteDest
	)
	t := &e.ReadingType
	dest := []any{
		&e.SiteReadingID, &localID, &e.QualityFlags, &periodStart,
		&e.TimePeriodSeconds, &e.Value, &changed,
		&t.SiteReadingTypeID, &t.UOM, &t.DataQualifier, &t.FlowDirection, &t.Kind,
		&t.Phase, &t.PowerOfTenMultiplier, &t.DefaultIntervalSeconds, &rtChange,
	}
	if err := row.Scan(append(dest, d.targets()...)...); err != nil {
		return nil, err
	}

	if localID.Valid {
		e.LocalID = &localID.Int64
	}
	var err error
	if t.Site, err = d.finish(); err != nil {
		return nil, err
	}
	if e.TimePeriodStart, err = database.ParseTime(periodStart); err != nil {
		return nil, err
	}
	if e.ChangedTime, err = database.ParseTime(changed); err != nil {
		return nil, err
	}
	if t.ChangedTime, err = database.ParseTime(rtChange); err != nil {
		return nil, err
	}
	return e, nil
}

func scanDOE(row rowScanner) (Entity, error) {
	var (
		e              DynamicOperatingEnvelope
		start, changed string
		d              siteDest
	)
	dest := []any{
		&e.DynamicOperatingEnvelopeID, &start, &e.DurationSeconds,
		&e.ImportLimitActiveWatts, &e.ExportLimitWatts, &changed,
	}
	if err := row.Scan(append(dest, d.targets()...)...); err != nil {
		return nil, err
	}

	var err error
	if e.Site, err = d.finish(); err != nil {
		return nil, err
	}
	if e.StartTime, err = database.ParseTime(start); err != nil {
		return nil, err
	}
	if e.ChangedTime, err = database.ParseTime(changed); err != nil {
		return nil, err
	}
	return e, nil
}

func scanRate(row rowScanner) (Entity, error) {
	var (
		e              TariffGeneratedRate
		start, changed string
		d              siteDest
	)
	dest := []any{
		&e.TariffGeneratedRateID, &e.TariffID, &start, &e.DurationSeconds,
		&e.ImportActivePrice, &e.ExportActivePrice,
		&e.ImportReactivePrice, &e.ExportReactivePrice, &changed,
	}
	if err := row.Scan(append(dest, d.targets()...)...); err != nil {
		return nil, err
	}

	var err error
	if e.Site, err = d.finish(); err != nil {
		return nil, err
	}
	if e.StartTime, err = database.ParseTime(start); err != nil {
		return nil, err
	}
	if e.ChangedTime, err = database.ParseTime(changed); err != nil {
		return nil, err
	}
	return e, nil
}
