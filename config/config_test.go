package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"STORAGE_TYPE", "MONGO_URI", "MONGO_DATABASE", "LOCAL_STORAGE_PATH", "DATA_SOURCE_NAME",
	"DATABASE_URL", "S3_BUCKET_NAME", "S3_PREFIX", "REDIS_ADDR", "REDIS_DB", "REDIS_PREFIX",
	"LISTEN_ADDR", "LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED",
}

// clearEnv empties every variable Load reads; t.Setenv restores the
// originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, "test", cfg.MongoDatabase)
	assert.Equal(t, "./data", cfg.LocalStoragePath)
	assert.Equal(t, "people.db", cfg.DataSourceName)
	assert.Equal(t, "people/", cfg.S3Prefix)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, ":3002", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadMongoURIImpliesMongoDB(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, StorageMongoDB, cfg.StorageType)
}

func TestLoadExplicitStorageTypeWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("STORAGE_TYPE", " SQLite ")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, StorageSQLite, cfg.StorageType)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":9000")

	path := filepath.Join(t.TempDir(), ".env")
	content := "STORAGE_TYPE=redis\nREDIS_DB=3\nLISTEN_ADDR=:1234\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageRedis, cfg.StorageType)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, ":9000", cfg.ListenAddr, "environment overrides the file")
}

func TestLoadInvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
