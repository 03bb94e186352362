// Package jsonfile implements the flat-file record store: one JSON document
// per entity collection, rewritten atomically on every mutation.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/example/taskplanner/internal/persistence"
)

// Store persists each collection as <dir>/<entity>.json holding
// {"<entity>": [records...]}. The id counter for a collection lives in
// <dir>/.<entity>.seq.
type Store struct {
	dir    string
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

// WithLogger sets the logger used to report recovered corruption.
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

// Open prepares a store rooted at dir, creating the directory when needed.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("jsonfile: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create data directory: %w", err)
	}
	s := &Store{
		dir:    dir,
		locks:  persistence.NewLocks(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory holding the collection documents.
func (s *Store) Dir() string {
	return s.dir
}

// GetAll returns the collection in append order.
func (s *Store) GetAll(ctx context.Context, entity string) ([]persistence.Record, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return nil, err
	}
	return s.read(ctx, entity)
}

// GetByID looks a record up by id.
func (s *Store) GetByID(ctx context.Context, entity string, id int64) (persistence.Record, error) {
	records, err := s.GetAll(ctx, entity)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if recID, ok := rec.ID(); ok && recID == id {
			return rec, nil
		}
	}
	return nil, persistence.ErrNotFound
}

// Create appends a new record with a fresh id.
func (s *Store) Create(ctx context.Context, entity string, fields persistence.Record) (persistence.Record, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu := s.locks.For(entity)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.read(ctx, entity)
	if err != nil {
		return nil, err
	}
	counter, err := s.readCounter(ctx, entity)
	if err != nil {
		return nil, err
	}

	id := persistence.NextID(counter, records)
	rec, err := persistence.Canonical(persistence.Stamp(fields, id, persistence.Timestamp(s.now())))
	if err != nil {
		return nil, err
	}

	if err := s.writeCounter(entity, id); err != nil {
		return nil, err
	}
	if err := s.write(entity, append(records, rec)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update merges fields into the record with the given id.
func (s *Store) Update(ctx context.Context, entity string, id int64, fields persistence.Record) (persistence.Record, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mu := s.locks.For(entity)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.read(ctx, entity)
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		recID, ok := rec.ID()
		if !ok || recID != id {
			continue
		}
		merged, err := persistence.Canonical(persistence.Merge(rec, fields, persistence.Timestamp(s.now())))
		if err != nil {
			return nil, err
		}
		records[i] = merged
		if err := s.write(entity, records); err != nil {
			return nil, err
		}
		return merged, nil
	}
	return nil, persistence.ErrNotFound
}

// Delete removes the record with the given id.
func (s *Store) Delete(ctx context.Context, entity string, id int64) (bool, error) {
	if err := persistence.ValidateEntity(entity); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	mu := s.locks.For(entity)
	mu.Lock()
	defer mu.Unlock()

	records, err := s.read(ctx, entity)
	if err != nil {
		return false, err
	}

	kept := make([]persistence.Record, 0, len(records))
	removed := false
	for _, rec := range records {
		if recID, ok := rec.ID(); ok && recID == id {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return false, nil
	}
	if err := s.write(entity, kept); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) collectionPath(entity string) string {
	return filepath.Join(s.dir, entity+".json")
}

func (s *Store) counterPath(entity string) string {
	return filepath.Join(s.dir, "."+entity+".seq")
}

// read loads a collection. Missing files are empty collections; malformed
// documents are logged and treated as empty.
func (s *Store) read(ctx context.Context, entity string) ([]persistence.Record, error) {
	path := s.collectionPath(entity)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []persistence.Record{}, nil
		}
		return nil, fmt.Errorf("jsonfile: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []persistence.Record{}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.WarnContext(ctx, "malformed collection document treated as empty", "entity", entity, "path", path, "error", err)
		return []persistence.Record{}, nil
	}
	raw, ok := doc[entity]
	if !ok {
		return []persistence.Record{}, nil
	}
	records, err := persistence.DecodeRecords(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "malformed collection document treated as empty", "entity", entity, "path", path, "error", err)
		return []persistence.Record{}, nil
	}
	if records == nil {
		records = []persistence.Record{}
	}
	return records, nil
}

func (s *Store) write(entity string, records []persistence.Record) error {
	if records == nil {
		records = []persistence.Record{}
	}
	data, err := json.MarshalIndent(map[string][]persistence.Record{entity: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode %s: %w", entity, err)
	}
	return writeAtomic(s.collectionPath(entity), append(data, '\n'))
}

func (s *Store) readCounter(ctx context.Context, entity string) (int64, error) {
	path := s.counterPath(entity)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("jsonfile: read %s: %w", path, err)
	}
	counter, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil || counter < 0 {
		s.logger.WarnContext(ctx, "malformed id counter ignored", "entity", entity, "path", path)
		return 0, nil
	}
	return counter, nil
}

func (s *Store) writeCounter(entity string, value int64) error {
	return writeAtomic(s.counterPath(entity), []byte(strconv.FormatInt(value, 10)+"\n"))
}

// writeAtomic replaces path with data using the temp-file, fsync, rename
// sequence so readers only ever see complete documents.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: rename temp file: %w", err)
	}
	return nil
}
