package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/julianopk/payment-broker/internal/payment"
	"github.com/julianopk/payment-broker/internal/upstream"
)

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	correlationId  TEXT     NOT NULL,
	amount         REAL     NOT NULL,
	requestedAt    DATETIME NOT NULL,
	defaultService INTEGER  NOT NULL,
	processed      INTEGER  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_requested_at ON payments(requestedAt);

CREATE VIEW IF NOT EXISTS payments_default AS
	SELECT * FROM payments WHERE processed = 1 AND defaultService = 1;

CREATE VIEW IF NOT EXISTS payments_fallback AS
	SELECT * FROM payments WHERE processed = 1 AND defaultService = 0;

CREATE TABLE IF NOT EXISTS service_health_check (
	service         TEXT PRIMARY KEY,
	failing         INTEGER  NOT NULL,
	minResponseTime INTEGER  NOT NULL,
	lastCheck       DATETIME
);

INSERT OR IGNORE INTO service_health_check (service, failing, minResponseTime, lastCheck)
	VALUES ('default', 0, 0, NULL), ('fallback', 0, 0, NULL);
`

// HealthRow is one persisted row of the service_health_check mirror.
type HealthRow struct {
	Failing         bool
	MinResponseTime int
	LastCheck       time.Time
}

// Store owns the on-disk payments database. All queries run on a Handle
// leased from the Pool, so callers control how much database concurrency the
// broker is allowed.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies the
// schema. The returned Store is safe for concurrent use through leased
// handles.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for pool construction.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends one dispatched payment. Failures are returned as-is; the
// write queue owns the decision not to retry.
func (s *Store) Insert(ctx context.Context, h *Handle, rec payment.Record) error {
	_, err := h.conn.ExecContext(ctx,
		`INSERT INTO payments (correlationId, amount, requestedAt, defaultService, processed)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.CorrelationID, rec.Amount, rec.RequestedAt, boolToInt(rec.DefaultService), boolToInt(rec.Processed),
	)
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", rec.CorrelationID, err)
	}
	return nil
}

// TotalAmount sums amounts over the processed view for the given upstream
// inside [from,to]. Endpoints are inclusive instants compared as epoch
// seconds, so the caller's timestamp formatting cannot skew the range.
func (s *Store) TotalAmount(ctx context.Context, h *Handle, name upstream.Name, from, to time.Time) (float64, error) {
	var total float64
	err := h.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM `+viewFor(name)+`
		 WHERE CAST(strftime('%s', requestedAt) AS INTEGER) BETWEEN ? AND ?`,
		from.UTC().Unix(), to.UTC().Unix(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total amount for %s: %w", name, err)
	}
	return total, nil
}

// TotalCount counts rows with the same predicate as TotalAmount.
func (s *Store) TotalCount(ctx context.Context, h *Handle, name upstream.Name, from, to time.Time) (int, error) {
	var count int
	err := h.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+viewFor(name)+`
		 WHERE CAST(strftime('%s', requestedAt) AS INTEGER) BETWEEN ? AND ?`,
		from.UTC().Unix(), to.UTC().Unix(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("total count for %s: %w", name, err)
	}
	return count, nil
}

// PurgeAll deletes every payment row. Health-check mirror rows survive a
// purge.
func (s *Store) PurgeAll(ctx context.Context, h *Handle) error {
	if _, err := h.conn.ExecContext(ctx, `DELETE FROM payments`); err != nil {
		return fmt.Errorf("purge payments: %w", err)
	}
	return nil
}

// SaveServiceHealth upserts the persisted mirror row for one upstream.
func (s *Store) SaveServiceHealth(ctx context.Context, h *Handle, name upstream.Name, row HealthRow) error {
	_, err := h.conn.ExecContext(ctx,
		`INSERT INTO service_health_check (service, failing, minResponseTime, lastCheck)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(service) DO UPDATE SET
			failing = excluded.failing,
			minResponseTime = excluded.minResponseTime,
			lastCheck = excluded.lastCheck`,
		string(name), boolToInt(row.Failing), row.MinResponseTime, payment.Timestamp(row.LastCheck),
	)
	if err != nil {
		return fmt.Errorf("save health for %s: %w", name, err)
	}
	return nil
}

// LoadServiceHealth reads both mirror rows, used to seed the in-memory
// registry across restarts.
func (s *Store) LoadServiceHealth(ctx context.Context, h *Handle) (map[upstream.Name]HealthRow, error) {
	rows, err := h.conn.QueryContext(ctx,
		`SELECT service, failing, minResponseTime, lastCheck FROM service_health_check`)
	if err != nil {
		return nil, fmt.Errorf("load service health: %w", err)
	}
	defer rows.Close()

	out := make(map[upstream.Name]HealthRow, 2)
	for rows.Next() {
		var (
			service   string
			failing   int
			minRT     int
			lastCheck sql.NullString
		)
		if err := rows.Scan(&service, &failing, &minRT, &lastCheck); err != nil {
			return nil, fmt.Errorf("scan service health: %w", err)
		}

		row := HealthRow{Failing: failing != 0, MinResponseTime: minRT}
		if lastCheck.Valid && lastCheck.String != "" {
			t, err := payment.ParseTimestamp(lastCheck.String)
			if err != nil {
				s.logger.Warn("Skipping unparseable lastCheck",
					slog.String("upstream", service),
					slog.String("value", lastCheck.String))
			} else {
				row.LastCheck = t
			}
		}
		out[upstream.Name(service)] = row
	}

	return out, rows.Err()
}

func viewFor(name upstream.Name) string {
	if name == upstream.Fallback {
		return "payments_fallback"
	}
	return "payments_default"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
