package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     string
	Description string
	SQL         []string
}

// migrations are applied in order and recorded in schema_migrations.
var migrations = []Migration{
	{
		Version:     "001",
		Description: "create records table",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS records (
				entity     TEXT   NOT NULL,
				id         BIGINT NOT NULL,
				data       TEXT   NOT NULL,
				created_at TEXT   NOT NULL,
				updated_at TEXT   NOT NULL,
				PRIMARY KEY (entity, id)
			)`,
		},
	},
	{
		Version:     "002",
		Description: "create record sequences",
		SQL: []string{
			`CREATE TABLE IF NOT EXISTS record_sequences (
				entity  TEXT   NOT NULL PRIMARY KEY,
				last_id BIGINT NOT NULL
			)`,
		},
	},
}

// Migrate applies pending migrations, each inside its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     TEXT NOT NULL PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("sqlstore: create schema_migrations: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		start := time.Now()
		err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.SQL {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				s.pool.rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`),
				m.Version, m.Description, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("sqlstore: migration %s (%s): %w", m.Version, m.Description, err)
		}
		s.logger.LogAttrs(ctx, slog.LevelInfo, "migration applied",
			slog.String("version", m.Version),
			slog.String("description", m.Description),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// AppliedVersions lists recorded migration versions in order.
func (s *Store) AppliedVersions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) appliedVersions(ctx context.Context) (map[string]bool, error) {
	versions, err := s.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
