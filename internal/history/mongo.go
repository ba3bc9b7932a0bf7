package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
)

// CollectionName is the MongoDB collection holding history versions.
const CollectionName = "history_versions"

// ConnectMongo opens and pings a client. Callers must Disconnect it.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	slog.Info("[Mongo] Connected")
	return client, nil
}

// MongoStore stores versions as documents keyed by version id.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

// EnsureIndexes creates the lookup index used by Find.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "contentType", Value: 1},
			{Key: "documentId", Value: 1},
			{Key: "locale", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, version *v1.HistoryVersion) error {
	if _, err := s.col.InsertOne(ctx, version); err != nil {
		return fmt.Errorf("failed to insert history version: %w", err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, q StoreQuery) ([]*v1.HistoryVersion, int, error) {
	filter := bson.M{"contentType": q.ContentType}
	if q.DocumentID != "" {
		filter["documentId"] = q.DocumentID
	}
	if q.Locale != "" {
		filter["locale"] = q.Locale
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history versions: %w", err)
	}
	if total == 0 || int64(q.Offset) >= total {
		return []*v1.HistoryVersion{}, int(total), nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(q.Offset))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query history versions: %w", err)
	}
	defer cur.Close(ctx)

	var out []*v1.HistoryVersion
	for cur.Next(ctx) {
		var v v1.HistoryVersion
		if err := cur.Decode(&v); err != nil {
			return nil, 0, fmt.Errorf("failed to decode history version: %w", err)
		}
		v.Data = plainMap(v.Data)
		out = append(out, &v)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate history versions: %w", err)
	}
	return out, int(total), nil
}

// plainMap converts nested BSON documents and arrays into maps and slices so versions
// render the same from every store.
func plainMap(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		m[k] = plain(v)
	}
	return m
}

func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.M:
		return plainMap(map[string]interface{}(t))
	case map[string]interface{}:
		return plainMap(t)
	case bson.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}
