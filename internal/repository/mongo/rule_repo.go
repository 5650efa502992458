package mongo

import (
	"context"
	"fmt"

	"github.com/albepe01/NetworkSecurity-Project/internal/rules"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RuleRepository stores signature rules in the "rules" collection and serves
// them to the rule engine as a rules.Source.
type RuleRepository struct {
	coll *mongo.Collection
}

func NewRuleRepository(client *mongo.Client, dbName string) *RuleRepository {
	return &RuleRepository{coll: client.Database(dbName).Collection("rules")}
}

func (r *RuleRepository) GetAll(ctx context.Context) ([]rules.Rule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var all []rules.Rule
	if err = cursor.All(ctx, &all); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("rules collection is empty")
	}
	// compile here so a bad pattern names its rule before the engine is built
	if err := rules.Compile(all); err != nil {
		return nil, err
	}
	return all, nil
}

func (r *RuleRepository) Upsert(ctx context.Context, rule rules.Rule) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule, opts)
	return err
}

// Seed inserts the given rules when the collection is empty and reports how
// many were written.
func (r *RuleRepository) Seed(ctx context.Context, seed []rules.Rule) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for _, rule := range seed {
		if err := r.Upsert(ctx, rule); err != nil {
			return 0, fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
	}
	return len(seed), nil
}
