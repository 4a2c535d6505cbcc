package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/report"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "compkgs"

const (
	reportsCollection = "reports"
	connectTimeout    = 10 * time.Second
)

// MongoStore keeps one document per run in the "reports" collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and ensures the creation time index.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongo store requires a URI")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(reportsCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Save(ctx context.Context, rep *report.Report) error {
	if rep.RunID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "report has no run id")
	}
	if _, err := s.coll.InsertOne(ctx, rep); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *MongoStore) Latest(ctx context.Context) (*report.Report, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.findOne(ctx, bson.D{}, opts, "no reports stored")
}

func (s *MongoStore) Get(ctx context.Context, runID string) (*report.Report, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: runID}}, options.FindOne(), "run "+runID+" not found")
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D, opts *options.FindOneOptions, notFound string) (*report.Report, error) {
	var rep report.Report
	err := s.coll.FindOne(ctx, filter, opts).Decode(&rep)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeNotFound, "%s", notFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &rep, nil
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]Info, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "version", Value: 1}, {Key: "created_at", Value: 1}, {Key: "summary", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	var out []Info
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
