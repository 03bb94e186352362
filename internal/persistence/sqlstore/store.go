package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/taskplanner/internal/persistence"
)

// Store keeps every collection in a shared records table keyed by
// (entity, id) with the record body stored as JSON text.
type Store struct {
	pool   *ConnectionPool
	locks  *persistence.Locks
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for migrations and recovered corruption.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocks shares a lock registry with other components.
func WithLocks(locks *persistence.Locks) Option {
	return func(s *Store) {
		if locks != nil {
			s.locks = locks
		}
	}
}

// Open connects to the database. Call Migrate before first use.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*Store, error) {
	pool, err := OpenPool(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return New(pool, opts...), nil
}

// New builds a Store over an existing pool.
func New(pool *ConnectionPool, opts ...Option) *Store {
	s := &Store{
		pool:   pool,
		locks:  persistence.NewLocks(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetAll returns the collection ordered by id, which is creation order.
func (s *Store) GetAll(ctx context.Context, entity string) ([]persistence.Record, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return nil, err
	}

	rows, err := s.pool.db.QueryContext(ctx,
		s.pool.rebind(`SELECT id, data FROM records WHERE entity = ? ORDER BY id`), entity)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list %s: %w", entity, err)
	}
	defer rows.Close()

	records := make([]persistence.Record, 0)
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("sqlstore: scan %s: %w", entity, err)
		}
		rec, ok := s.decode(ctx, entity, id, data)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list %s: %w", entity, err)
	}
	return records, nil
}

// GetByID looks a record up by primary key.
func (s *Store) GetByID(ctx context.Context, entity string, id int64) (persistence.Record, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return nil, err
	}

	var data string
	err := s.pool.db.QueryRowContext(ctx,
		s.pool.rebind(`SELECT data FROM records WHERE entity = ? AND id = ?`), entity, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: get %s/%d: %w", entity, id, err)
	}
	rec, ok := s.decode(ctx, entity, id, data)
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return rec, nil
}

// Create inserts a record with the next id from the collection sequence.
func (s *Store) Create(ctx context.Context, entity string, fields persistence.Record) (persistence.Record, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return nil, err
	}

	mu := s.locks.For(entity)
	mu.Lock()
	defer mu.Unlock()

	var created persistence.Record
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.pool.lockCollection(ctx, tx, entity); err != nil {
			return err
		}

		var counter int64
		err := tx.QueryRowContext(ctx,
			s.pool.rebind(`SELECT last_id FROM record_sequences WHERE entity = ?`), entity).Scan(&counter)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read sequence: %w", err)
		}

		var highest int64
		if err := tx.QueryRowContext(ctx,
			s.pool.rebind(`SELECT COALESCE(MAX(id), 0) FROM records WHERE entity = ?`), entity).Scan(&highest); err != nil {
			return fmt.Errorf("read max id: %w", err)
		}

		id := max(counter, highest) + 1
		now := persistence.Timestamp(s.now())
		rec, err := persistence.Canonical(persistence.Stamp(fields, id, now))
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}

		if _, err := tx.ExecContext(ctx, s.pool.rebind(`
			INSERT INTO record_sequences (entity, last_id) VALUES (?, ?)
			ON CONFLICT (entity) DO UPDATE SET last_id = excluded.last_id`), entity, id); err != nil {
			return fmt.Errorf("advance sequence: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.pool.rebind(`
			INSERT INTO records (entity, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
			entity, id, string(data), now, now); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: create %s: %w", entity, err)
	}
	return created, nil
}

// Update merges fields into the stored record.
func (s *Store) Update(ctx context.Context, entity string, id int64, fields persistence.Record) (persistence.Record, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return nil, err
	}

	mu := s.locks.For(entity)
	mu.Lock()
	defer mu.Unlock()

	var updated persistence.Record
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.pool.lockCollection(ctx, tx, entity); err != nil {
			return err
		}

		var data string
		err := tx.QueryRowContext(ctx,
			s.pool.rebind(`SELECT data FROM records WHERE entity = ? AND id = ?`), entity, id).Scan(&data)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			return fmt.Errorf("read record: %w", err)
		}
		existing, ok := s.decode(ctx, entity, id, data)
		if !ok {
			return persistence.ErrNotFound
		}

		now := persistence.Timestamp(s.now())
		merged, err := persistence.Canonical(persistence.Merge(existing, fields, now))
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			s.pool.rebind(`UPDATE records SET data = ?, updated_at = ? WHERE entity = ? AND id = ?`),
			string(encoded), now, entity, id); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		updated = merged
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: update %s/%d: %w", entity, id, err)
	}
	return updated, nil
}

// Delete removes a record and reports whether a row was affected.
func (s *Store) Delete(ctx context.Context, entity string, id int64) (bool, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return false, err
	}

	mu := s.locks.For(entity)
	mu.Lock()
	defer mu.Unlock()

	result, err := s.pool.db.ExecContext(ctx,
		s.pool.rebind(`DELETE FROM records WHERE entity = ? AND id = ?`), entity, id)
	if err != nil {
		return false, fmt.Errorf("sqlstore: delete %s/%d: %w", entity, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: delete %s/%d: %w", entity, id, err)
	}
	return affected > 0, nil
}

// decode parses a stored body. Corrupt rows are skipped with a warning.
func (s *Store) decode(ctx context.Context, entity string, id int64, data string) (persistence.Record, bool) {
	rec, err := persistence.DecodeRecord([]byte(data))
	if err != nil {
		s.logger.WarnContext(ctx, "malformed record skipped", "entity", entity, "id", id, "error", err)
		return nil, false
	}
	rec[persistence.FieldID] = id
	return rec, true
}
