package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

// ProfileRepository implements profile.Repository on the profiles table.
type ProfileRepository struct {
	conn *Connection
	now  func() time.Time
}

// NewProfileRepository creates a new PostgreSQL-backed profile repository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn, now: time.Now}
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the profile for id.
func (r *ProfileRepository) Get(ctx context.Context, id profile.Identity) (*profile.Profile, error) {
	row := r.conn.Pool().QueryRow(ctx, `SELECT document FROM profiles WHERE key = $1`, id.Key())
	p, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, mapError("GetProfile", err)
	}
	return p, nil
}

// List pages through profiles in key order.
func (r *ProfileRepository) List(ctx context.Context, afterKey string, limit int) ([]*profile.Profile, error) {
	query := `SELECT document FROM profiles WHERE key > $1 ORDER BY key`
	args := []any{afterKey}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("ListProfiles", err)
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		p, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapError("ListProfiles", rows.Err())
}

// Ping checks database connectivity.
func (r *ProfileRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITES
// ══════════════════════════════════════════════════════════════════════════════

// Update runs fn under a row lock. A missing row is first inserted as a
// placeholder so that concurrent creators of the same key serialize on the
// primary key instead of overwriting each other.
func (r *ProfileRepository) Update(ctx context.Context, id profile.Identity, fn profile.UpdateFunc) (*profile.Profile, error) {
	key := id.Key()
	if key == "" {
		return nil, shared.ErrMissingIdentity
	}

	var result *profile.Profile
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		now := r.now().UTC()

		seed, err := json.Marshal(profile.New(id, now))
		if err != nil {
			return err
		}
		var inserted string
		err = tx.QueryRow(ctx, `
			INSERT INTO profiles (key, email, session_id, document, version)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, 0)
			ON CONFLICT (key) DO NOTHING
			RETURNING key`,
			key, id.Email, id.SessionID, seed,
		).Scan(&inserted)
		exists := true
		switch {
		case err == nil:
			exists = false
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return mapError("SeedProfile", err)
		}

		p, err := scanDocument(tx.QueryRow(ctx, `SELECT document FROM profiles WHERE key = $1 FOR UPDATE`, key))
		if err != nil {
			return mapError("LockProfile", err)
		}

		if err := fn(p, exists); err != nil {
			return err
		}

		p.Key = key
		p.Version++
		p.Touch(now)
		if err := writeProfile(ctx, tx, p); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the profile.
func (r *ProfileRepository) Delete(ctx context.Context, id profile.Identity) error {
	_, err := r.conn.Pool().Exec(ctx, `DELETE FROM profiles WHERE key = $1`, id.Key())
	return mapError("DeleteProfile", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func writeProfile(ctx context.Context, q Querier, p *profile.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.Key, err)
	}

	_, err = q.Exec(ctx, `
		UPDATE profiles SET
			email = NULLIF($2, ''),
			session_id = NULLIF($3, ''),
			total_xp = $4,
			weekly_xp = $5,
			level = $6,
			streak_current = $7,
			streak_longest = $8,
			last_active_at = $9,
			league_tier = $10,
			source = NULLIF($11, ''),
			version = $12,
			document = $13,
			updated_at = $14
		WHERE key = $1`,
		p.Key,
		p.Email,
		p.SessionID,
		p.XP.Total,
		p.XP.Weekly,
		p.Level(),
		p.Streak.Current,
		p.Streak.Longest,
		p.Streak.LastActiveAt,
		p.LeagueTier.String(),
		p.Source,
		p.Version,
		doc,
		p.UpdatedAt,
	)
	return mapError("WriteProfile", err)
}

func scanDocument(row pgx.Row) (*profile.Profile, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var p profile.Profile
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode profile document: %w", err)
	}
	return &p, nil
}
