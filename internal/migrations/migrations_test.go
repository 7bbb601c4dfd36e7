package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	matches, err := fs.Glob(embedded, Dir+"/*_create_carts_table.sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one carts migration")

	data, err := fs.ReadFile(embedded, matches[0])
	require.NoError(t, err)
	content := string(data)

	checks := []string{
		"-- +goose Up",
		"-- +goose Down",
		"CREATE TABLE IF NOT EXISTS carts",
		"user_id    TEXT PRIMARY KEY",
		"document   JSONB NOT NULL",
		"DROP TABLE IF EXISTS carts",
	}

	for _, sub := range checks {
		assert.True(t, strings.Contains(content, sub), "missing expected statement %q", sub)
	}
}

func TestRun_RequiresDB(t *testing.T) {
	err := Run(t.Context(), nil, "up")

	assert.EqualError(t, err, "db is required")
}
