package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"AriaPull/internal/domain/models"
	domrepo "AriaPull/internal/domain/repository"
	pkgch "AriaPull/pkg/clickhouse"
	applogger "AriaPull/pkg/logger"
)

const eventColumns = "id, category, time, facility, track1_id, track2_id, callsign1, callsign2, " +
	"lat, lon, lateral_separation_nm, vertical_separation_ft, score"

// dbConn is the subset of *sql.DB the store uses.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

// ClickHouseEventStore keeps detected events in ClickHouse. Redelivered
// events collapse on merge because the table is a ReplacingMergeTree keyed
// by encounter.
type ClickHouseEventStore struct {
	db    dbConn
	table string
	l     *applogger.Logger
}

func NewClickHouseEventStore(ch *pkgch.Client, table string) *ClickHouseEventStore {
	return newClickHouseEventStore(ch.DB(), ch.Database(), table)
}

func newClickHouseEventStore(db dbConn, database, table string) *ClickHouseEventStore {
	if database != "" {
		table = database + "." + table
	}
	return &ClickHouseEventStore{db: db, table: table}
}

// SetLogger injects a structured logger.
func (s *ClickHouseEventStore) SetLogger(l *applogger.Logger) { s.l = l }

// Table is the fully qualified table name.
func (s *ClickHouseEventStore) Table() string { return s.table }

func (s *ClickHouseEventStore) schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id String,
            category LowCardinality(String),
            time DateTime64(3, 'UTC'),
            facility LowCardinality(String),
            track1_id String,
            track2_id String,
            callsign1 String,
            callsign2 String,
            lat Float64,
            lon Float64,
            lateral_separation_nm Float64,
            vertical_separation_ft Float64,
            score Float64,
            inserted_at DateTime DEFAULT now()
        )
        ENGINE = ReplacingMergeTree(inserted_at)
        PARTITION BY toYYYYMM(time)
        ORDER BY (track1_id, track2_id, time, category)
    `, s.table)}
}

// Init creates the events table if it does not exist.
func (s *ClickHouseEventStore) Init(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func insertArgs(e models.AirborneEvent) []any {
	return []any{
		e.ID, e.Category, e.Time.UTC(), e.Facility, e.Track1ID, e.Track2ID, e.Callsign1, e.Callsign2,
		e.Latitude, e.Longitude, e.LateralSeparationNM, e.VerticalSeparationFt, e.Score,
	}
}

func (s *ClickHouseEventStore) Accept(ctx context.Context, e models.AirborneEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, eventColumns)
	if _, err := s.db.ExecContext(ctx, q, insertArgs(e)...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse insert event error",
				applogger.String("table", s.table),
				applogger.String("event_id", e.ID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *ClickHouseEventStore) Recent(ctx context.Context, limit int) ([]models.AirborneEvent, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT %s FROM %s FINAL ORDER BY time DESC LIMIT ?", eventColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	out := make([]models.AirborneEvent, 0, limit)
	for rows.Next() {
		var e models.AirborneEvent
		if err := rows.Scan(&e.ID, &e.Category, &e.Time, &e.Facility, &e.Track1ID, &e.Track2ID,
			&e.Callsign1, &e.Callsign2, &e.Latitude, &e.Longitude,
			&e.LateralSeparationNM, &e.VerticalSeparationFt, &e.Score); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse recent events ok",
			applogger.String("table", s.table),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseEventStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.EventStore = (*ClickHouseEventStore)(nil)
