package stores

import (
	"context"
	"fmt"
	"people-store/config"
	"people-store/core"
	"people-store/stores/aws"
	"people-store/stores/filesystem"
	"people-store/stores/memory"
	"people-store/stores/mongodb"
	"people-store/stores/postgres"
	"people-store/stores/redis"
	"people-store/stores/sqlite"

	"github.com/sirupsen/logrus"
)

func GetStore(ctx context.Context, cfg config.Config) (core.PersonStore, error) {
	var (
		store core.PersonStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case config.StorageFilesystem:
		storageField["basePath"] = cfg.LocalStoragePath
		store, err = filesystem.NewDocumentStore(cfg.LocalStoragePath)
	case config.StorageSQLite:
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewDocumentStore(cfg.DataSourceName)
	case config.StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres storage requires DATABASE_URL")
		}
		store, err = postgres.NewDocumentStore(ctx, cfg.DatabaseURL)
	case config.StorageMongoDB:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongodb storage requires MONGO_URI")
		}
		storageField["database"] = cfg.MongoDatabase
		store, err = mongodb.NewDocumentStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StorageS3:
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("s3 storage requires S3_BUCKET_NAME")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store, err = aws.NewDocumentStore(ctx, cfg.S3BucketName, cfg.S3Prefix)
	case config.StorageRedis:
		storageField["redisAddr"] = cfg.RedisAddr
		store, err = redis.NewDocumentStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
	case config.StorageMemory, "":
		store = memory.NewDocumentStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
	if err != nil {
		logrus.WithFields(storageField).WithField("error", err).Error("Failed to open storage")
		return nil, err
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
