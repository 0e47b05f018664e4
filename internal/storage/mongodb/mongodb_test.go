package mongodb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

func TestPrefixFilter(t *testing.T) {
	filter := prefixFilter("b", types.ListInput{Prefix: "logs/2024.01/"})
	assert.Equal(t, "b", filter["bucket"])
	assert.Equal(t, bson.M{"$regex": `^logs/2024\.01/`}, filter["key"])

	filter = prefixFilter("b", types.ListInput{Prefix: "p/", ContinuationToken: "p/x"})
	assert.Equal(t, bson.M{"$regex": "^p/", "$gt": "p/x"}, filter["key"])
}

func TestMapError(t *testing.T) {
	assert.True(t, errs.IsNotFound(mapError(mongo.ErrNoDocuments, "get", "k")))
	assert.True(t, errs.IsAccessDenied(mapError(mongo.CommandError{Code: codeUnauthorized}, "list")))
	assert.True(t, errs.IsAccessDenied(mapError(mongo.CommandError{Code: codeAuthenticationFailed}, "list")))
	assert.True(t, errs.IsIO(mapError(mongo.CommandError{Code: 11000}, "put", "k")))
	assert.True(t, errs.IsIO(mapError(errors.New("server selection timeout"), "ping")))
}
