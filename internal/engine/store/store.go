// Package store implements the Persistence Adapter (§4.4): a thin,
// single-connection wrapper over the embedded output database that the
// rest of the engine reads and writes through. Every table name and
// column name it operates on is decided by the caller (Entity Manager,
// Event Tracker, Queue Manager) — the adapter itself knows nothing about
// simulation semantics.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/infrastructure/resilience"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

// Store wraps a single sqlite connection. Pooling is deliberately
// disabled (MaxOpenConns=1) so Close releases the file handle
// deterministically — §4.4 requires the database file to be renamable
// or deletable immediately after.
type Store struct {
	db    *sqlx.DB
	retry resilience.RetryConfig
	log   *logger.Logger
}

// Open establishes the single connection to the embedded store, applies
// WAL journaling and the configured busy timeout, and runs the engine's
// own migrations.
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cfg.Path, cfg.BusyTimeoutMS)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, simerrors.StoreFatal("open "+cfg.Path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, simerrors.StoreFatal("ping "+cfg.Path, err)
	}

	s := &Store{
		db:    db,
		retry: resilience.StoreRetryConfig(cfg.MaxRetryAttempts),
		log:   log,
	}

	if cfg.MigrateOnStart {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// DB exposes the underlying handle for components (schema bootstrap,
// resource pool seed load) that need direct sqlx access.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the file handle. Safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// withRetry runs fn, retrying with backoff only while the failure looks
// like a transient sqlite busy/locked condition; any other error (e.g. a
// constraint violation) is returned immediately.
func (s *Store) withRetry(ctx context.Context, where string, fn func() error) error {
	retryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var lastErr error
	giveUp := false
	err := resilience.Retry(retryCtx, s.retry, func() error {
		lastErr = fn()
		if lastErr != nil && !resilience.IsRetryableStoreError(lastErr) {
			giveUp = true
			cancel() // ends Retry's backoff wait at once
		}
		return lastErr
	})
	if giveUp {
		err = lastErr
	}
	if err != nil {
		s.log.WithField("where", where).WithError(err).Warn("store operation failed")
		return simerrors.StoreWriteFailed(where, err)
	}
	return nil
}
