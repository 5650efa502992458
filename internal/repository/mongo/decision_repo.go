package mongo

import (
	"context"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/audit"
	"github.com/albepe01/NetworkSecurity-Project/internal/core"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DBName          = "waf"
	TimeoutDuration = 5 * time.Second
)

// Connect initializes the MongoDB client
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}
	return client, nil
}

// DecisionRepository appends decision records to the "decisions" collection
// and reads them back for the audit endpoint.
type DecisionRepository struct {
	coll *mongo.Collection
}

func NewDecisionRepository(client *mongo.Client, dbName string) *DecisionRepository {
	return &DecisionRepository{coll: client.Database(dbName).Collection("decisions")}
}

func (r *DecisionRepository) Name() string { return "mongo" }

func (r *DecisionRepository) Write(ctx context.Context, rec core.DecisionRecord) error {
	_, err := r.coll.InsertOne(ctx, rec)
	return err
}

// Close leaves the shared client to its owner.
func (r *DecisionRepository) Close() error { return nil }

func (r *DecisionRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func (r *DecisionRepository) List(ctx context.Context, filter core.AuditFilter) (*core.PaginatedDecisions, error) {
	mongoFilter := bson.M{}
	if filter.DatasetID != "" {
		mongoFilter["dataset_id"] = filter.DatasetID
	}
	if filter.ModelID != "" {
		mongoFilter["model_id"] = filter.ModelID
	}
	if filter.Verdict != "" {
		mongoFilter["combined_verdict"] = filter.Verdict
	}

	totalItems, err := r.coll.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, err
	}

	page, limit := audit.NormalizePage(filter.Page, filter.Limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var decisions []core.DecisionRecord
	if err = cursor.All(ctx, &decisions); err != nil {
		return nil, err
	}
	if decisions == nil {
		decisions = []core.DecisionRecord{}
	}

	out := &core.PaginatedDecisions{Data: decisions}
	out.Pagination.CurrentPage = page
	out.Pagination.TotalPages = audit.TotalPages(totalItems, limit)
	out.Pagination.TotalItems = totalItems
	out.Pagination.PerPage = limit
	return out, nil
}
