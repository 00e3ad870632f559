// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageMemory     = "memory"
	StorageFilesystem = "filesystem"
	StorageSQLite     = "sqlite"
	StoragePostgres   = "postgres"
	StorageMongoDB    = "mongodb"
	StorageS3         = "s3"
	StorageRedis      = "redis"
)

type Config struct {
	// StorageType selects the backend. Empty means mongodb when MongoURI is
	// set and memory otherwise.
	StorageType string `envconfig:"STORAGE_TYPE"`

	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"test"`

	LocalStoragePath string `envconfig:"LOCAL_STORAGE_PATH" default:"./data"`
	DataSourceName   string `envconfig:"DATA_SOURCE_NAME" default:"people.db"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`

	S3BucketName string `envconfig:"S3_BUCKET_NAME"`
	S3Prefix     string `envconfig:"S3_PREFIX" default:"people/"`

	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB     int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"people"`

	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":3002"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads envPath (".env" when empty) if it exists, then the process
// environment. Variables already set in the environment win over the file.
func Load(envPath string) (Config, error) {
	if envPath == "" {
		envPath = ".env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg.normalize(), nil
}

func (c Config) normalize() Config {
	c.StorageType = strings.ToLower(strings.TrimSpace(c.StorageType))
	if c.StorageType == "" {
		if c.MongoURI != "" {
			c.StorageType = StorageMongoDB
		} else {
			c.StorageType = StorageMemory
		}
	}
	return c
}
