// Package mongodb stores objects as documents of a MongoDB collection,
// giving the filesystem layer a flat key/value store with the same contract
// as S3.
package mongodb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/s3fs-fuse/s3storage/internal/errs"
	"github.com/s3fs-fuse/s3storage/internal/storage/types"
)

// MongoDB server error codes for authorization failures.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

// ObjectDocument represents an object document in MongoDB
type ObjectDocument struct {
	Bucket       string            `bson:"bucket"`
	Key          string            `bson:"key"`
	Data         []byte            `bson:"data"`
	Size         int64             `bson:"size"`
	LastModified time.Time         `bson:"last_modified"`
	Owner        string            `bson:"owner,omitempty"`
	Metadata     map[string]string `bson:"metadata,omitempty"`
}

// MongoBackend implements types.Backend using MongoDB
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
	bucket     string
}

var _ types.Backend = (*MongoBackend)(nil)

// NewMongoBackend connects to uri, authenticating with user/password when
// given, and ensures the (bucket, key) index exists.
func NewMongoBackend(ctx context.Context, uri, user, password, database, collection, bucket string) (*MongoBackend, error) {
	opts := options.Client().ApplyURI(uri)
	if user != "" {
		opts.SetAuth(options.Credential{Username: user, Password: password})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, mapError(err, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, mapError(err, "failed to ping MongoDB")
	}

	coll := client.Database(database).Collection(collection)
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "bucket", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		client.Disconnect(context.Background())
		return nil, mapError(err, "failed to create index")
	}

	return &MongoBackend{
		client:     client,
		collection: coll,
		bucket:     bucket,
	}, nil
}

// Bucket returns the namespace documents are stored under.
func (m *MongoBackend) Bucket() string {
	return m.bucket
}

func (m *MongoBackend) keyFilter(key string) bson.M {
	return bson.M{"bucket": m.bucket, "key": key}
}

// PutObject upserts the document for key.
func (m *MongoBackend) PutObject(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	doc := ObjectDocument{
		Bucket:       m.bucket,
		Key:          key,
		Data:         data,
		Size:         int64(len(data)),
		LastModified: time.Now().UTC(),
		Metadata:     metadata,
	}
	_, err := m.collection.ReplaceOne(ctx, m.keyFilter(key), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return mapError(err, "failed to put object", key)
	}
	return nil
}

// GetObject returns the content stored at key.
func (m *MongoBackend) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	var doc ObjectDocument
	if err := m.collection.FindOne(ctx, m.keyFilter(key)).Decode(&doc); err != nil {
		return nil, mapError(err, "failed to get object", key)
	}
	return io.NopCloser(bytes.NewReader(doc.Data)), nil
}

// ListObjectsV2 lists documents under in.Prefix in byte order of key.
func (m *MongoBackend) ListObjectsV2(ctx context.Context, in types.ListInput) (*types.ListOutput, error) {
	cursor, err := m.collection.Find(ctx, prefixFilter(m.bucket, in),
		options.Find().
			SetSort(bson.D{{Key: "key", Value: 1}}).
			SetProjection(bson.M{"data": 0}))
	if err != nil {
		return nil, mapError(err, "failed to list objects", in.Prefix)
	}
	defer cursor.Close(ctx)

	pager := types.NewPager(in)
	for cursor.Next(ctx) {
		var doc ObjectDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, mapError(err, "failed to decode object document", in.Prefix)
		}
		if !pager.Add(types.ObjectSummary{
			Key:          doc.Key,
			Size:         doc.Size,
			LastModified: doc.LastModified,
			Owner:        doc.Owner,
		}) {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, mapError(err, "failed to list objects", in.Prefix)
	}
	return pager.Output(), nil
}

// prefixFilter selects documents of bucket whose key starts with in.Prefix
// and sorts after the continuation token.
func prefixFilter(bucket string, in types.ListInput) bson.M {
	keyCond := bson.M{"$regex": "^" + regexp.QuoteMeta(in.Prefix)}
	if in.ContinuationToken != "" {
		keyCond["$gt"] = in.ContinuationToken
	}
	return bson.M{"bucket": bucket, "key": keyCond}
}

// DoesObjectExist reports whether a document exists for key.
func (m *MongoBackend) DoesObjectExist(ctx context.Context, key string) (bool, error) {
	n, err := m.collection.CountDocuments(ctx, m.keyFilter(key), options.Count().SetLimit(1))
	if err != nil {
		return false, mapError(err, "failed to check object", key)
	}
	return n > 0, nil
}

// CopyObject duplicates the document for srcKey under dstKey.
func (m *MongoBackend) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	var doc ObjectDocument
	if err := m.collection.FindOne(ctx, m.keyFilter(srcKey)).Decode(&doc); err != nil {
		return mapError(err, "failed to read copy source", srcKey)
	}
	doc.Key = dstKey
	doc.LastModified = time.Now().UTC()

	_, err := m.collection.ReplaceOne(ctx, m.keyFilter(dstKey), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return mapError(err, "failed to copy object", srcKey, dstKey)
	}
	return nil
}

// DeleteObject removes the document for key.
func (m *MongoBackend) DeleteObject(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, m.keyFilter(key)); err != nil {
		return mapError(err, "failed to delete object", key)
	}
	return nil
}

// DeleteObjects removes every document in keys with one request.
func (m *MongoBackend) DeleteObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	filter := bson.M{"bucket": m.bucket, "key": bson.M{"$in": keys}}
	if _, err := m.collection.DeleteMany(ctx, filter); err != nil {
		return mapError(err, "failed to delete objects", keys...)
	}
	return nil
}

// Close disconnects from MongoDB
func (m *MongoBackend) Close() error {
	return m.client.Disconnect(context.Background())
}

// mapError translates driver errors into *errs.Error.
func mapError(err error, msg string, keys ...string) *errs.Error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.Wrap(errs.KindNotFound, msg, err, keys...)
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) &&
		(serverErr.HasErrorCode(codeUnauthorized) || serverErr.HasErrorCode(codeAuthenticationFailed)) {
		return errs.Wrap(errs.KindAccessDenied, msg, err, keys...)
	}

	return errs.Wrap(errs.KindIO, msg, err, keys...)
}
