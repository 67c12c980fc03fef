package source

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"video-filter/pkg/config"
	"video-filter/pkg/domain"
)

// MongoSource streams documents from a MongoDB collection through a
// server-side cursor.
type MongoSource struct {
	uri string
	cfg config.MongoConfig
}

// NewMongoSource creates a source over a mongodb:// URI.
func NewMongoSource(uri string, cfg config.MongoConfig) *MongoSource {
	return &MongoSource{uri: uri, cfg: cfg}
}

// Open connects, verifies connectivity, and opens a find-all cursor.
func (s *MongoSource) Open(ctx context.Context) (Iterator, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w: %w", ErrSourceUnavailable, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w: %w", ErrSourceUnavailable, err)
	}

	coll := client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("query mongodb %s.%s: %w: %w", s.cfg.Database, s.cfg.Collection, ErrSourceUnavailable, err)
	}

	return &mongoIterator{
		client: client,
		cursor: cursor,
	}, nil
}

type mongoIterator struct {
	client *mongo.Client
	cursor *mongo.Cursor
	n      int64
}

func (it *mongoIterator) Next(ctx context.Context) (domain.Record, error) {
	if !it.cursor.Next(ctx) {
		if err := it.cursor.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	it.n++

	var doc bson.M
	if err := it.cursor.Decode(&doc); err != nil {
		return nil, &ParseError{Record: it.n, Err: err}
	}

	rec := make(domain.Record, len(doc))
	for k, v := range doc {
		rec[k] = normalizeBSONValue(v)
	}
	return rec, nil
}

func (it *mongoIterator) Close() error {
	ctx := context.Background()
	cursorErr := it.cursor.Close(ctx)
	clientErr := it.client.Disconnect(ctx)
	if cursorErr != nil {
		return cursorErr
	}
	return clientErr
}

// normalizeBSONValue maps BSON-specific types onto plain Go values so the
// exporter sees the same shapes regardless of backend.
func normalizeBSONValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeBSONValue(e)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeBSONValue(e)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return val.String()
	case int32:
		return int64(val)
	default:
		return v
	}
}
