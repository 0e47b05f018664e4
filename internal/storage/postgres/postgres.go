// Package postgres stores objects as rows of a PostgreSQL table, giving the
// filesystem layer a flat key/value store with the same contract as S3.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// PostgresBackend implements types.Backend using PostgreSQL
type PostgresBackend struct {
	db     *sql.DB
	table  string // Table name for storing objects
	bucket string // "Bucket" name (namespace)
}

var _ types.Backend = (*PostgresBackend)(nil)

// NewPostgresBackend connects to connStr and ensures the object table exists.
func NewPostgresBackend(connStr, table, bucket string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to open PostgreSQL connection", err)
	}

	backend := &PostgresBackend{
		db:     db,
		table:  pq.QuoteIdentifier(table),
		bucket: bucket,
	}

	if err := backend.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, mapError(err, "failed to initialize schema")
	}

	return backend, nil
}

// ConnString returns endpoint with user and password set from the access
// key pair, unless the URI already carries credentials.
func ConnString(endpoint, user, password string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errs.Wrap(errs.KindConfiguration, "invalid postgres endpoint", err, endpoint)
	}
	if u.User == nil && user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String(), nil
}

// initSchema creates the necessary tables
func (p *PostgresBackend) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			bucket VARCHAR(255) NOT NULL,
			key VARCHAR(4096) NOT NULL,
			data BYTEA,
			size BIGINT NOT NULL DEFAULT 0,
			last_modified TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			owner VARCHAR(255) NOT NULL DEFAULT '',
			metadata JSONB,
			PRIMARY KEY (bucket, key)
		);
	`, p.table)

	_, err := p.db.ExecContext(ctx, query)
	return err
}

// Bucket returns the namespace rows are stored under.
func (p *PostgresBackend) Bucket() string {
	return p.bucket
}

// PutObject inserts or replaces the row for key.
func (p *PostgresBackend) PutObject(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return errs.Wrap(errs.KindIO, "failed to encode metadata", err, key)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (bucket, key, data, size, last_modified, metadata)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (bucket, key)
		DO UPDATE SET
			data = EXCLUDED.data,
			size = EXCLUDED.size,
			last_modified = EXCLUDED.last_modified,
			metadata = EXCLUDED.metadata
	`, p.table)

	if _, err := p.db.ExecContext(ctx, query, p.bucket, key, data, len(data), meta); err != nil {
		return mapError(err, "failed to put object", key)
	}
	return nil
}

// GetObject returns the content stored at key.
func (p *PostgresBackend) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE bucket = $1 AND key = $2", p.table)
	var data []byte
	if err := p.db.QueryRowContext(ctx, query, p.bucket, key).Scan(&data); err != nil {
		return nil, mapError(err, "failed to get object", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ListObjectsV2 lists rows under in.Prefix in byte order of key.
func (p *PostgresBackend) ListObjectsV2(ctx context.Context, in types.ListInput) (*types.ListOutput, error) {
	query := fmt.Sprintf(`
		SELECT key, size, last_modified, owner FROM %s
		WHERE bucket = $1 AND key LIKE $2 ESCAPE '\' AND key COLLATE "C" > $3
		ORDER BY key COLLATE "C"
	`, p.table)

	rows, err := p.db.QueryContext(ctx, query, p.bucket, escapeLike(in.Prefix)+"%", in.ContinuationToken)
	if err != nil {
		return nil, mapError(err, "failed to list objects", in.Prefix)
	}
	defer rows.Close()

	pager := types.NewPager(in)
	for rows.Next() {
		var s types.ObjectSummary
		var modified time.Time
		if err := rows.Scan(&s.Key, &s.Size, &modified, &s.Owner); err != nil {
			return nil, mapError(err, "failed to scan object row", in.Prefix)
		}
		s.LastModified = modified
		if !pager.Add(s) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to list objects", in.Prefix)
	}
	return pager.Output(), nil
}

// DoesObjectExist reports whether a row exists for key.
func (p *PostgresBackend) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE bucket = $1 AND key = $2 LIMIT 1", p.table)
	var exists int
	err := p.db.QueryRowContext(ctx, query, p.bucket, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err, "failed to check object", key)
	}
	return true, nil
}

// CopyObject duplicates the row for srcKey under dstKey.
func (p *PostgresBackend) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (bucket, key, data, size, last_modified, owner, metadata)
		SELECT bucket, $3, data, size, NOW(), owner, metadata FROM %[1]s
		WHERE bucket = $1 AND key = $2
		ON CONFLICT (bucket, key)
		DO UPDATE SET
			data = EXCLUDED.data,
			size = EXCLUDED.size,
			last_modified = EXCLUDED.last_modified,
			owner = EXCLUDED.owner,
			metadata = EXCLUDED.metadata
	`, p.table)

	result, err := p.db.ExecContext(ctx, query, p.bucket, srcKey, dstKey)
	if err != nil {
		return mapError(err, "failed to copy object", srcKey, dstKey)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "failed to copy object", srcKey, dstKey)
	}
	if rows == 0 {
		return errs.New(errs.KindNotFound, "source object not found", srcKey)
	}
	return nil
}

// DeleteObject removes the row for key.
func (p *PostgresBackend) DeleteObject(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE bucket = $1 AND key = $2", p.table)
	if _, err := p.db.ExecContext(ctx, query, p.bucket, key); err != nil {
		return mapError(err, "failed to delete object", key)
	}
	return nil
}

// DeleteObjects removes every row in keys with one statement.
func (p *PostgresBackend) DeleteObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE bucket = $1 AND key = ANY($2)", p.table)
	if _, err := p.db.ExecContext(ctx, query, p.bucket, pq.Array(keys)); err != nil {
		return mapError(err, "failed to delete objects", keys...)
	}
	return nil
}

// Close closes the database connection
func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

// escapeLike escapes LIKE wildcards so prefix matches literally.
func escapeLike(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

// mapError translates database errors into *errs.Error.
func mapError(err error, msg string, keys ...string) *errs.Error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.KindNotFound, msg, err, keys...)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42501", "28000", "28P01": // insufficient_privilege, invalid auth
			return errs.Wrap(errs.KindAccessDenied, msg, err, keys...)
		}
	}

	return errs.Wrap(errs.KindIO, msg, err, keys...)
}
