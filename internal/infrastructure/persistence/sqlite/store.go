// Package sqlite implements profile.Repository on an embedded SQLite file,
// for single-node deployments that do not run PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	key        TEXT PRIMARY KEY,
	total_xp   INTEGER NOT NULL DEFAULT 0,
	version    INTEGER NOT NULL DEFAULT 0,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store is a SQLite-backed profile repository. Writers are serialized by a
// single connection and IMMEDIATE transactions.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, unavailable("Open", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, id profile.Identity) (*profile.Profile, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM profiles WHERE key = ?`, id.Key()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrProfileNotFound
	}
	if err != nil {
		return nil, unavailable("Get", err)
	}
	return decode(doc)
}

func (s *Store) Update(ctx context.Context, id profile.Identity, fn profile.UpdateFunc) (*profile.Profile, error) {
	key := id.Key()
	if key == "" {
		return nil, shared.ErrMissingIdentity
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("Begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	var doc string
	err = tx.QueryRowContext(ctx, `SELECT document FROM profiles WHERE key = ?`, key).Scan(&doc)

	var p *profile.Profile
	exists := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		p = profile.New(id, now)
		exists = false
	case err != nil:
		return nil, unavailable("Select", err)
	default:
		if p, err = decode(doc); err != nil {
			return nil, err
		}
	}

	if err := fn(p, exists); err != nil {
		return nil, err
	}

	p.Key = key
	p.Version++
	p.Touch(now)

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode profile: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO profiles (key, total_xp, version, document, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	total_xp = excluded.total_xp,
	version = excluded.version,
	document = excluded.document,
	updated_at = excluded.updated_at`,
		key, p.XP.Total, p.Version, string(data), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, unavailable("Upsert", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("Commit", err)
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id profile.Identity) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE key = ?`, id.Key()); err != nil {
		return unavailable("Delete", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, afterKey string, limit int) ([]*profile.Profile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM profiles WHERE key > ? ORDER BY key LIMIT ?`, afterKey, limit)
	if err != nil {
		return nil, unavailable("List", err)
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		p, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("Ping", err)
	}
	return nil
}

func decode(doc string) (*profile.Profile, error) {
	var p profile.Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("sqlite: decode profile: %w", err)
	}
	return &p, nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return shared.WrapError("sqlite", op, shared.ErrStorageUnavailable, "sqlite operation failed", err)
}
