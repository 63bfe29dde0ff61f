package secondary

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"docvault/internal/config"
	"docvault/internal/schema"
)

// MongoStore keeps one BSON document per id, keyed by _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ RecordStore = (*MongoStore)(nil)

// Connect dials MongoDB and pings it.
func Connect(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// EnsureIndexes creates the indexes used by the fallback queries.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: schema.SnakeKey("owner"), Value: 1}}},
		{Keys: bson.D{{Key: schema.SnakeKey("sharedWith"), Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Merge(ctx context.Context, id string, fields schema.Record) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("merge %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, field, value string) ([]schema.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: schema.SnakeKey("uploadedAt"), Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{field: value}, opts)
	if err != nil {
		return nil, fmt.Errorf("find by %s: %w", field, err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	out := make([]schema.Record, 0, len(raw))
	for _, m := range raw {
		out = append(out, fromBSON(m))
	}
	return out, nil
}

// fromBSON converts driver types into the plain Go values the schema package understands.
func fromBSON(m bson.M) schema.Record {
	out := make(schema.Record, len(m))
	for k, v := range m {
		if k == "_id" {
			if _, ok := m["id"]; !ok {
				out["id"] = plain(v)
			}
			continue
		}
		out[k] = plain(v)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.A:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, plain(item))
		}
		return out
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
