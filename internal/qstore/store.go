// Package qstore persists Q-values in sqlite. One row per
// (agent_type, state_hash, action_hash); rows are created lazily on
// first write and updated in place forever after. All mutation paths
// run as single atomic units so concurrent learner instances compose
// their deltas instead of clobbering each other.
package qstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clawinfra/qbank/internal/agenttype"
)

// ErrNotFound is returned when no Q-value exists for a key.
var ErrNotFound = errors.New("qstore: not found")

// ErrUnavailable is returned when the database stays unreachable
// after the bounded retry budget is spent.
var ErrUnavailable = errors.New("qstore: store unavailable")

// Key identifies one Q-value row.
type Key struct {
	AgentType  agenttype.AgentType `json:"agent_type"`
	StateHash  string              `json:"state_hash"`
	ActionHash string              `json:"action_hash"`
}

// Entry is one Q-value row.
type Entry struct {
	Key
	Value      float64   `json:"value"`
	VisitCount uint64    `json:"visit_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UpdateFunc computes a new (value, visits) pair from the stored one.
// For a missing row both arguments are zero.
type UpdateFunc func(oldValue float64, oldVisits uint64) (newValue float64, newVisits uint64)

// Config holds store tuning knobs.
type Config struct {
	Path           string        `json:"path"`
	MaxOpenConns   int           `json:"maxOpenConns"`
	MaxIdleConns   int           `json:"maxIdleConns"`
	BusyTimeout    time.Duration `json:"busyTimeout"`
	OpTimeout      time.Duration `json:"opTimeout"`
	MaxRetries     int           `json:"maxRetries"`
	RetryBaseDelay time.Duration `json:"retryBaseDelay"`
}

// DefaultConfig returns sane pool and retry settings for a store at
// the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		MaxOpenConns:   8,
		MaxIdleConns:   2,
		BusyTimeout:    5 * time.Second,
		OpTimeout:      10 * time.Second,
		MaxRetries:     4,
		RetryBaseDelay: 50 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig(c.Path)
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = def.BusyTimeout
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = def.OpTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = def.RetryBaseDelay
	}
}

// Store is a pooled sqlite-backed Q-value store. Safe for concurrent
// use from many goroutines and many processes.
type Store struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// Open opens (or creates) the store and runs migrations.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("qstore: path required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("qstore: create data dir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them;
	// _txlock=immediate makes write transactions take the write lock
	// up front instead of failing midway under contention.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("qstore: open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "qstore"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("qstore: migrate: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS q_values (
			agent_type  TEXT NOT NULL,
			state_hash  TEXT NOT NULL,
			action_hash TEXT NOT NULL,
			value       REAL NOT NULL DEFAULT 0,
			visit_count INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT NOT NULL,
			PRIMARY KEY (agent_type, state_hash, action_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_q_values_state ON q_values(agent_type, state_hash)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored entry for a key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key Key) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	var e Entry
	err := s.withRetry(ctx, "get", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT value, visit_count, updated_at FROM q_values
			 WHERE agent_type = ? AND state_hash = ? AND action_hash = ?`,
			key.AgentType.String(), key.StateHash, key.ActionHash)

		var updatedAt string
		if err := row.Scan(&e.Value, &e.VisitCount, &updatedAt); err != nil {
			return err
		}
		e.Key = key
		e.UpdatedAt = parseTime(updatedAt)
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s/%s/%s", ErrNotFound, key.AgentType, key.StateHash, key.ActionHash)
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// UpsertApply reads the current (value, visits) for a key, applies fn
// and writes the result, all inside one write transaction. Concurrent
// callers serialize on the database write lock, so no caller ever
// computes against a stale read.
func (s *Store) UpsertApply(ctx context.Context, key Key, fn UpdateFunc) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	var out Entry
	err := s.withRetry(ctx, "upsert_apply", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var oldValue float64
		var oldVisits uint64
		row := tx.QueryRowContext(ctx,
			`SELECT value, visit_count FROM q_values
			 WHERE agent_type = ? AND state_hash = ? AND action_hash = ?`,
			key.AgentType.String(), key.StateHash, key.ActionHash)
		if err := row.Scan(&oldValue, &oldVisits); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		newValue, newVisits := fn(oldValue, oldVisits)
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO q_values (agent_type, state_hash, action_hash, value, visit_count, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(agent_type, state_hash, action_hash) DO UPDATE SET
			   value = excluded.value,
			   visit_count = excluded.visit_count,
			   updated_at = excluded.updated_at`,
			key.AgentType.String(), key.StateHash, key.ActionHash,
			newValue, newVisits, formatTime(now)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		out = Entry{Key: key, Value: newValue, VisitCount: newVisits, UpdatedAt: now}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

// ApplyBellman applies Q(s,a) += alpha * (r + gamma*max_a' Q(s',a') - Q(s,a))
// as a single upsert statement. The bootstrap term max_a' Q(s',a') is
// read by a subquery inside the same statement, so the whole update
// is one atomic unit. done (or an empty next state) zeroes the
// bootstrap term via the COALESCE fallback.
func (s *Store) ApplyBellman(ctx context.Context, key Key, rewardValue float64, nextStateHash string, done bool, alpha, gamma float64) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if done {
		nextStateHash = ""
	}

	const stmt = `
		INSERT INTO q_values (agent_type, state_hash, action_hash, value, visit_count, updated_at)
		VALUES (?1, ?2, ?3,
			?4 * (?5 + ?6 * COALESCE((SELECT MAX(value) FROM q_values WHERE agent_type = ?1 AND state_hash = ?7), 0.0)),
			1, ?8)
		ON CONFLICT(agent_type, state_hash, action_hash) DO UPDATE SET
			value = value + ?4 * (?5 + ?6 * COALESCE((SELECT MAX(value) FROM q_values WHERE agent_type = ?1 AND state_hash = ?7), 0.0) - value),
			visit_count = visit_count + 1,
			updated_at = excluded.updated_at`

	var out Entry
	err := s.withRetry(ctx, "apply_bellman", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, stmt,
			key.AgentType.String(), key.StateHash, key.ActionHash,
			alpha, rewardValue, gamma, nextStateHash, formatTime(now)); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx,
			`SELECT value, visit_count FROM q_values
			 WHERE agent_type = ?1 AND state_hash = ?2 AND action_hash = ?3`,
			key.AgentType.String(), key.StateHash, key.ActionHash)
		if err := row.Scan(&out.Value, &out.VisitCount); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		out.Key = key
		out.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

// MaxValue returns the highest Q-value recorded for a state, and
// whether the state has any entries at all.
func (s *Store) MaxValue(ctx context.Context, at agenttype.AgentType, stateHash string) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	var max sql.NullFloat64
	err := s.withRetry(ctx, "max_value", func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT MAX(value) FROM q_values WHERE agent_type = ? AND state_hash = ?`,
			at.String(), stateHash).Scan(&max)
	})
	if err != nil {
		return 0, false, err
	}
	return max.Float64, max.Valid, nil
}

// StateValues returns every stored entry for a state, keyed by action
// hash. Unknown states return an empty map.
func (s *Store) StateValues(ctx context.Context, at agenttype.AgentType, stateHash string) (map[string]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	out := make(map[string]Entry)
	err := s.withRetry(ctx, "state_values", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT action_hash, value, visit_count, updated_at FROM q_values
			 WHERE agent_type = ? AND state_hash = ?`,
			at.String(), stateHash)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck

		clear(out)
		for rows.Next() {
			e := Entry{Key: Key{AgentType: at, StateHash: stateHash}}
			var updatedAt string
			if err := rows.Scan(&e.ActionHash, &e.Value, &e.VisitCount, &updatedAt); err != nil {
				return err
			}
			e.UpdatedAt = parseTime(updatedAt)
			out[e.ActionHash] = e
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot returns all entries, optionally filtered to one agent
// type, ordered by value descending.
func (s *Store) Snapshot(ctx context.Context, at agenttype.AgentType) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	query := `SELECT agent_type, state_hash, action_hash, value, visit_count, updated_at
		FROM q_values ORDER BY value DESC`
	args := []any{}
	if at != "" {
		query = `SELECT agent_type, state_hash, action_hash, value, visit_count, updated_at
			FROM q_values WHERE agent_type = ? ORDER BY value DESC`
		args = append(args, at.String())
	}

	var entries []Entry
	err := s.withRetry(ctx, "snapshot", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck

		entries = entries[:0]
		for rows.Next() {
			var e Entry
			var atStr, updatedAt string
			if err := rows.Scan(&atStr, &e.StateHash, &e.ActionHash, &e.Value, &e.VisitCount, &updatedAt); err != nil {
				return err
			}
			e.AgentType = agenttype.AgentType(atStr)
			e.UpdatedAt = parseTime(updatedAt)
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportJSON writes a full snapshot to path. The write is atomic:
// temp file then rename.
func (s *Store) ExportJSON(ctx context.Context, path string) error {
	entries, err := s.Snapshot(ctx, "")
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("qstore: marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("qstore: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("qstore: rename snapshot: %w", err)
	}
	s.logger.Info("exported snapshot", "path", path, "entries", len(entries))
	return nil
}

// Stats summarizes the table for CLI output and maintenance logging.
type Stats struct {
	TotalEntries int64                         `json:"total_entries"`
	TotalVisits  int64                         `json:"total_visits"`
	PerAgentType map[agenttype.AgentType]int64 `json:"per_agent_type"`
}

// Stats counts rows per agent type.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	st := Stats{PerAgentType: make(map[agenttype.AgentType]int64)}
	err := s.withRetry(ctx, "stats", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT agent_type, COUNT(*), COALESCE(SUM(visit_count), 0)
			 FROM q_values GROUP BY agent_type`)
		if err != nil {
			return err
		}
		defer rows.Close() //nolint:errcheck

		st.TotalEntries, st.TotalVisits = 0, 0
		clear(st.PerAgentType)
		for rows.Next() {
			var atStr string
			var count, visits int64
			if err := rows.Scan(&atStr, &count, &visits); err != nil {
				return err
			}
			st.PerAgentType[agenttype.AgentType(atStr)] = count
			st.TotalEntries += count
			st.TotalVisits += visits
		}
		return rows.Err()
	})
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Vacuum reclaims free pages. Run from maintenance jobs only.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM`)
	if err != nil {
		return fmt.Errorf("qstore: vacuum: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
