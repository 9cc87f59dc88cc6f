package blob

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ThreatScanner/internal/ports"
)

// MongoStore implements the blob store over a MongoDB collection, one
// document per object keyed by the archive key.
type MongoStore struct {
	collection *mongo.Collection
}

var _ ports.BlobStore = (*MongoStore)(nil)

type blobDocument struct {
	Key         string            `bson:"_id"`
	Data        []byte            `bson:"data"`
	ContentType string            `bson:"content_type"`
	Metadata    map[string]string `bson:"metadata,omitempty"`
	Size        int64             `bson:"size"`
	StoredAt    time.Time         `bson:"stored_at"`
}

// NewMongoStore connects and verifies the MongoDB backend.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{collection: client.Database(database).Collection(collection)}, nil
}

// Put upserts an object under its key.
func (s *MongoStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	doc := blobDocument{
		Key:         key,
		Data:        data,
		ContentType: contentType,
		Metadata:    metadata,
		Size:        int64(len(data)),
		StoredAt:    time.Now().UTC(),
	}

	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	return nil
}

// Get returns the object bytes, or nil when the key does not exist.
func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc blobDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	return doc.Data, nil
}

// Delete removes an object; deleting a missing key is not an error.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// List enumerates keys under a prefix, reporting truncation when more
// results existed than the limit allowed.
func (s *MongoStore) List(ctx context.Context, prefix string, limit int) ([]string, bool, error) {
	filter := bson.M{}
	if prefix != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})
	if limit > 0 {
		// Fetch one extra document to detect truncation.
		opts.SetLimit(int64(limit + 1))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, fmt.Errorf("list blobs %s: %w", prefix, err)
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, false, fmt.Errorf("decode blob key: %w", err)
		}
		keys = append(keys, doc.Key)
	}
	if err := cursor.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate blobs: %w", err)
	}

	truncated := false
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
		truncated = true
	}
	return keys, truncated, nil
}

// Size returns the stored object size, or 0 when the key does not exist.
func (s *MongoStore) Size(ctx context.Context, key string) (int64, error) {
	var doc struct {
		Size int64 `bson:"size"`
	}
	err := s.collection.FindOne(ctx, bson.M{"_id": key},
		options.FindOne().SetProjection(bson.M{"size": 1})).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return doc.Size, nil
}
