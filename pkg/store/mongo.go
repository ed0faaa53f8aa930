package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/report"
)

// MongoStore is a mongo-backed report store for the serve mode, where
// several replicas share one run history.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to mongo at the given URI and uses the
// "runs" collection of the given database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection("runs"),
	}, nil
}

func (s *MongoStore) Save(ctx context.Context, r *report.Report) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"run_id": r.RunID}, r, opts)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, runID string) (*report.Report, error) {
	var r report.Report
	err := s.coll.FindOne(ctx, bson.M{"run_id": runID}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeResultNotFound, "run %q not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &r, nil
}

func (s *MongoStore) List(ctx context.Context) ([]Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "run_id", Value: 1}}).
		SetProjection(bson.M{"run_id": 1, "strategy": 1, "packing": 1, "created_at": 1})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer cur.Close(ctx)

	var out []Summary
	for cur.Next(ctx) {
		var r report.Report
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		out = append(out, Summary{
			RunID:     r.RunID,
			Strategy:  r.Strategy,
			Clusters:  r.Packing.NumClusters,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, runID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"run_id": runID}); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
