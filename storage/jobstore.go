package storage

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// JobState is the durable snapshot of one scheduled job: its trigger and
// where it is in the cycle. Persisting it lets schedules survive restarts.
type JobState struct {
	ID           string
	Interval     time.Duration
	NextRun      time.Time
	LastRun      *time.Time
	Paused       bool
	MisfireGrace time.Duration
}

// JobStore persists scheduler job state keyed by job identifier.
type JobStore interface {
	SaveJob(ctx context.Context, state *JobState) error
	// GetJob returns (nil, nil) when the job id is unknown.
	GetJob(ctx context.Context, id string) (*JobState, error)
	ListJobs(ctx context.Context) ([]*JobState, error)
}

// PostgresJobStore stores job state in the scheduled_jobs table, sharing the
// repository's connection pool.
type PostgresJobStore struct {
	db *sql.DB
}

var _ JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore migrates the job table and returns a ready store.
func NewPostgresJobStore(db *sql.DB) (*PostgresJobStore, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id                    TEXT PRIMARY KEY,
			interval_seconds      BIGINT      NOT NULL,
			next_run              TIMESTAMPTZ NOT NULL,
			last_run              TIMESTAMPTZ,
			paused                BOOLEAN     NOT NULL DEFAULT FALSE,
			misfire_grace_seconds BIGINT      NOT NULL
		);
	`)
	if err != nil {
		return nil, &PersistenceError{Op: "migrate scheduled_jobs", Err: err}
	}
	return &PostgresJobStore{db: db}, nil
}

func (s *PostgresJobStore) SaveJob(ctx context.Context, state *JobState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, interval_seconds, next_run, last_run, paused, misfire_grace_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			interval_seconds      = EXCLUDED.interval_seconds,
			next_run              = EXCLUDED.next_run,
			last_run              = EXCLUDED.last_run,
			paused                = EXCLUDED.paused,
			misfire_grace_seconds = EXCLUDED.misfire_grace_seconds
	`, state.ID, int64(state.Interval.Seconds()), state.NextRun, state.LastRun,
		state.Paused, int64(state.MisfireGrace.Seconds()))
	if err != nil {
		return &PersistenceError{Op: "save job", Err: err}
	}
	return nil
}

func (s *PostgresJobStore) GetJob(ctx context.Context, id string) (*JobState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, interval_seconds, next_run, last_run, paused, misfire_grace_seconds
		FROM scheduled_jobs WHERE id = $1
	`, id)

	state, err := scanJobState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *PostgresJobStore) ListJobs(ctx context.Context) ([]*JobState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, interval_seconds, next_run, last_run, paused, misfire_grace_seconds
		FROM scheduled_jobs ORDER BY id
	`)
	if err != nil {
		return nil, &PersistenceError{Op: "list jobs", Err: err}
	}
	defer rows.Close()

	var states []*JobState
	for rows.Next() {
		state, err := scanJobState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate jobs", Err: err}
	}
	return states, nil
}

func scanJobState(row rowScanner) (*JobState, error) {
	var (
		state           JobState
		intervalSeconds int64
		graceSeconds    int64
		lastRun         sql.NullTime
	)

	err := row.Scan(&state.ID, &intervalSeconds, &state.NextRun, &lastRun,
		&state.Paused, &graceSeconds)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, &PersistenceError{Op: "scan job", Err: err}
	}

	state.Interval = time.Duration(intervalSeconds) * time.Second
	state.MisfireGrace = time.Duration(graceSeconds) * time.Second
	if lastRun.Valid {
		state.LastRun = &lastRun.Time
	}
	return &state, nil
}

// MemoryJobStore is an in-memory JobStore for tests and dry runs.
type MemoryJobStore struct {
	mu     sync.RWMutex
	states map[string]JobState
}

var _ JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore creates an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{states: make(map[string]JobState)}
}

func (s *MemoryJobStore) SaveJob(_ context.Context, state *JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = *state
	return nil
}

func (s *MemoryJobStore) GetJob(_ context.Context, id string) (*JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[id]; ok {
		c := state
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryJobStore) ListJobs(_ context.Context) ([]*JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]*JobState, 0, len(s.states))
	for _, state := range s.states {
		c := state
		states = append(states, &c)
	}
	return states, nil
}
