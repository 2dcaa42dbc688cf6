package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")

	gdb, err := New("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	require.FileExists(t, path)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("mysql", "dsn")
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestRequireMounted(t *testing.T) {
	dir := t.TempDir()

	mounted := filepath.Join(dir, "mounted.db")
	require.NoError(t, os.WriteFile(mounted, nil, 0o644))

	missing := filepath.Join(dir, "missing.db")

	require.ErrorContains(t, RequireMounted("sqlite", missing, true), "not mounted")
	require.ErrorContains(t, RequireMounted("sqlite", missing+"?cache=shared", true), "not mounted")

	require.NoError(t, RequireMounted("sqlite", missing, false))
	require.NoError(t, RequireMounted("sqlite", mounted, true))
	require.NoError(t, RequireMounted("sqlite", ":memory:", true))
	require.NoError(t, RequireMounted("postgres", "host=db user=vault", true))
}
