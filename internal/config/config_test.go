package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: sqlite
  name: library
  path: /tmp/data
schema:
  document: ./openapi.yaml
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "./openapi.yaml", cfg.Schema.Document)
	assert.Equal(t, "./schema/policy.yaml", cfg.Schema.Policy)
	assert.Equal(t, 25, cfg.Pagination.PageSize)
	assert.Equal(t, 100, cfg.Pagination.MaxPageSize)
	assert.Equal(t, "UserFull", cfg.Auth.UserModel)
	assert.True(t, cfg.Database.IsSQLite())
	assert.Equal(t, filepath.Join("/tmp/data", "library.db"), cfg.Database.DSN())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", User: "u", Password: "p", Host: "db", Port: 5432, Name: "books"}
	assert.Equal(t, "postgres://u:p@db:5432/books?sslmode=disable", pg.DSN())

	mem := DatabaseConfig{Driver: "sqlite", Name: ":memory:"}
	assert.Equal(t, ":memory:", mem.DSN())
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
