package database

import (
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-api/db/migrations"
	"github.com/noah-isme/siakad-api/pkg/config"
)

func TestMigrateDelegatesToGoose(t *testing.T) {
	original := gooseRun
	defer func() { gooseRun = original }()

	var gotCommand, gotDir string
	var gotArgs []string
	gooseRun = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir, gotArgs = command, dir, args
		return nil
	}

	require.NoError(t, Migrate(nil, nil, "up-to", "20240101000003"))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, ".", gotDir)
	assert.Equal(t, []string{"20240101000003"}, gotArgs)
}

func TestMigrateWrapsGooseError(t *testing.T) {
	original := gooseRun
	defer func() { gooseRun = original }()

	gooseRun = func(string, *sql.DB, string, ...string) error { return errors.New("no migrations") }

	err := Migrate(nil, nil, "down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "goose down")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "siakad", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=siakad sslmode=disable", dsn)
}
