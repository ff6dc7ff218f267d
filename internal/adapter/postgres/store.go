package postgres

import (
	"context"
	"fmt"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// runLockKey is the advisory lock id shared by every instance of the service.
const runLockKey int64 = 0x4f524f5241 // "ORORA"

const schema = `
CREATE TABLE IF NOT EXISTS forecast_runs (
	id               UUID PRIMARY KEY,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL,
	outcome          TEXT NOT NULL,
	input_count      INTEGER NOT NULL DEFAULT 0,
	feature_count    INTEGER NOT NULL DEFAULT 0,
	observation_time TEXT NOT NULL DEFAULT '',
	forecast_time    TEXT NOT NULL DEFAULT '',
	artifact_path    TEXT NOT NULL DEFAULT '',
	artifact_url     TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS forecast_runs_started_at_idx ON forecast_runs (started_at DESC);
`

// Store keeps the run log and provides the cross-instance run lock.
// It implements pipeline.RunLocker and pipeline.RunRecorder.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the run log table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// TryLock takes the session-level advisory lock on a dedicated connection.
// The connection is held until unlock is called.
func (s *Store) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, runLockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		// The run context may already be done; release on a fresh one.
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, runLockKey); err != nil {
			// Closing the session drops the lock with it.
			_ = conn.Conn().Close(context.Background())
		}
		conn.Release()
	}
	return unlock, true, nil
}

// RecordRun inserts a run log entry.
func (s *Store) RecordRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO forecast_runs (
			id, started_at, finished_at, outcome, input_count, feature_count,
			observation_time, forecast_time, artifact_path, artifact_url, error
		)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.StartedAt, rec.FinishedAt, rec.Outcome, rec.InputCount, rec.FeatureCount,
		rec.ObservationTime, rec.ForecastTime, rec.ArtifactPath, rec.ArtifactURL, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit run log entries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, started_at, finished_at, outcome, input_count, feature_count,
		        observation_time, forecast_time, artifact_path, artifact_url, error
		 FROM forecast_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RunRecord, error) {
		var r domain.RunRecord
		err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Outcome, &r.InputCount, &r.FeatureCount,
			&r.ObservationTime, &r.ForecastTime, &r.ArtifactPath, &r.ArtifactURL, &r.Error)
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return runs, nil
}
