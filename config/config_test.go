package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "localhost:8080", cfg.Api.Address)
	assert.Equal(t, "postgres", cfg.Db.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Auth.CacheExpiry)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	configYaml := []byte(`
logLevel: DEBUG
api:
  address: 0.0.0.0:9090
db:
  mode: memory
  postgres:
    host: db.internal
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), configYaml, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:9090", cfg.Api.Address)
	assert.Equal(t, "memory", cfg.Db.Mode)
	// Unset keys keep their defaults.
	assert.Equal(t, "db.internal", cfg.Db.Postgres.Host)
	assert.Equal(t, 5432, cfg.Db.Postgres.Port)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		Name:     "tasknode",
		User:     "postfiat",
		Password: "secret",
		SslMode:  "disable",
	}

	assert.Equal(t, "host=localhost port=5432 dbname=tasknode user=postfiat password=secret sslmode=disable", cfg.DSN())
}
