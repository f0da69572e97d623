package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"add tracker credentials", "add_tracker_credentials"},
		{"Add-Tracker-Credentials", "add_tracker_credentials"},
		{"ADD_TRACKER_CREDENTIALS", "add_tracker_credentials"},
		{"double__underscores", "double_underscores"},
		{"Orders Read Model v2", "orders_read_model_v2"},
		{"   padded   ", "padded"},
		{"drop!@#chars", "dropchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitizeName(tc.in))
		})
	}
}

func TestCreate(t *testing.T) {
	t.Run("writes an up and down pair", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := Create(dir, "add tracker credentials", "Tracker credential storage")
		require.NoError(t, err)

		assert.Len(t, mf.Version, 14)
		assert.Equal(t, dir, filepath.Dir(mf.UpPath))
		assert.Equal(t,
			strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql"),
			strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql"),
		)

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "-- Migration: add tracker credentials")
		assert.Contains(t, string(up), "-- Description: Tracker credential storage")
		assert.Contains(t, string(up), "forward SQL")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "(Rollback)")
		assert.Contains(t, string(down), "Rollback for Tracker credential storage")
	})

	t.Run("creates missing directories", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db", "migrations")

		mf, err := Create(dir, "first", "")
		require.NoError(t, err)

		assert.FileExists(t, mf.UpPath)
		assert.FileExists(t, mf.DownPath)
	})

	t.Run("file names carry the sanitized migration name", func(t *testing.T) {
		mf, err := Create(t.TempDir(), "Add Orders Table", "")
		require.NoError(t, err)

		assert.True(t, strings.HasSuffix(mf.UpPath, "_add_orders_table.up.sql"))
		assert.True(t, strings.HasSuffix(mf.DownPath, "_add_orders_table.down.sql"))
	})
}

func TestList(t *testing.T) {
	seed := func(t *testing.T, dir string, names ...string) {
		t.Helper()
		for _, name := range names {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- sql"), 0o644))
		}
	}

	t.Run("pairs list once, oldest first", func(t *testing.T) {
		dir := t.TempDir()
		seed(t, dir,
			"20260110140255_create_tracker_credentials.up.sql",
			"20260110140255_create_tracker_credentials.down.sql",
			"20260110134512_create_orders_read_model.up.sql",
			"20260110134512_create_orders_read_model.down.sql",
		)

		names, err := List(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"20260110134512_create_orders_read_model",
			"20260110140255_create_tracker_credentials",
		}, names)
	})

	t.Run("non-migration files are ignored", func(t *testing.T) {
		dir := t.TempDir()
		seed(t, dir, "000001_init.up.sql", "000001_init.down.sql", "README.md", ".gitkeep")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.up.sql"), 0o755))

		names, err := List(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init"}, names)
	})

	t.Run("empty directory", func(t *testing.T) {
		names, err := List(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("missing directory lists as empty", func(t *testing.T) {
		names, err := List(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}
