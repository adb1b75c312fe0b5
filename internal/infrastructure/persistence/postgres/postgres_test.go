package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legacy-quest/progression-engine/internal/domain/profile"
	"github.com/legacy-quest/progression-engine/internal/domain/profile/profiletest"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
)

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=legacy_quest user=postgres password=secret sslmode=disable connect_timeout=5",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestMigrations_Ordered(t *testing.T) {
	migs := Migrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError("op", nil))
	assert.ErrorIs(t, mapError("op", pgx.ErrNoRows), pgx.ErrNoRows)
	assert.ErrorIs(t, mapError("op", ErrConnectionClosed), shared.ErrStorageUnavailable)
	assert.ErrorIs(t, mapError("op", &pgconn.PgError{Code: "08006"}), shared.ErrStorageUnavailable)

	syntax := mapError("op", &pgconn.PgError{Code: "42601"})
	assert.False(t, errors.Is(syntax, shared.ErrStorageUnavailable))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
}

// TestProfileRepository_Contract runs against a real database when
// LQ_TEST_POSTGRES_URL is set.
func TestProfileRepository_Contract(t *testing.T) {
	url := os.Getenv("LQ_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("LQ_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	conn, err := NewConnection(ctx, Config{URL: url}, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)

	profiletest.RunRepositorySuite(t, func(t *testing.T) profile.Repository {
		_, err := conn.Pool().Exec(ctx, `TRUNCATE profiles`)
		require.NoError(t, err)
		return NewProfileRepository(conn)
	})
}
