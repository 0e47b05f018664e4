// Package storage selects and constructs the object-store backend for a
// validated configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/s3fs-fuse/s3storage/internal/config"
	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/s3client"
	"github.com/s3fs-fuse/s3storage/internal/storage/minio"
	"github.com/s3fs-fuse/s3storage/internal/storage/mongodb"
	"github.com/s3fs-fuse/s3storage/internal/storage/postgres"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

const (
	// PostgresTable is the table holding object rows for the postgres provider.
	PostgresTable = "objects"

	// MongoDatabase and MongoCollection locate object documents for the mongodb provider.
	MongoDatabase   = "s3storage"
	MongoCollection = "objects"
)

// NewBackend creates the backend named by cfg.Provider, bound to cfg.Bucket.
// cfg must already be validated.
func NewBackend(ctx context.Context, cfg *config.Config) (types.Backend, error) {
	switch cfg.Provider {
	case config.ProviderS3, "":
		client, err := s3client.Connect(ctx, cfg.Bucket, cfg.Region, cfg.EndPoint, cfg.Credentials())
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ProviderMinIO:
		driver, err := minio.New(cfg.EndPoint, cfg.AccessKey, cfg.SecretKey, cfg.Region, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return driver, nil

	case config.ProviderPostgres:
		connStr, err := postgres.ConnString(cfg.EndPoint, cfg.AccessKey, cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		backend, err := postgres.NewPostgresBackend(connStr, PostgresTable, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case config.ProviderMongoDB:
		backend, err := mongodb.NewMongoBackend(ctx, cfg.EndPoint, cfg.AccessKey, cfg.SecretKey,
			MongoDatabase, MongoCollection, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return backend, nil

	default:
		return nil, errs.New(errs.KindConfiguration, fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}
