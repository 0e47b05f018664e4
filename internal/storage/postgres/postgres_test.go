package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3fs-fuse/s3storage/internal/errs"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `data\_2024/50\%/`, escapeLike("data_2024/50%/"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, "", escapeLike(""))
}

func TestConnString(t *testing.T) {
	got, err := ConnString("postgres://db.local:5432/objects?sslmode=disable", "ak", "sk")
	require.NoError(t, err)
	assert.Equal(t, "postgres://ak:sk@db.local:5432/objects?sslmode=disable", got)

	got, err = ConnString("postgres://owner:pw@db.local/objects", "ak", "sk")
	require.NoError(t, err)
	assert.Equal(t, "postgres://owner:pw@db.local/objects", got)
}

func TestMapError(t *testing.T) {
	assert.True(t, errs.IsNotFound(mapError(sql.ErrNoRows, "get", "k")))
	assert.True(t, errs.IsAccessDenied(mapError(&pq.Error{Code: "42501"}, "put", "k")))
	assert.True(t, errs.IsAccessDenied(mapError(&pq.Error{Code: "28P01"}, "put", "k")))
	assert.True(t, errs.IsIO(mapError(&pq.Error{Code: "23505"}, "put", "k")))
	assert.True(t, errs.IsIO(mapError(errors.New("broken pipe"), "list")))
}
