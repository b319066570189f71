package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"replybot/internal/constants"
	"replybot/pkg/cache"
	"replybot/pkg/metrics"
)

type Repository interface {
	// GetPolicy returns the policy attached to ruleID, or nil when the rule
	// has none.
	GetPolicy(ctx context.Context, ruleID string) (*Policy, error)
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(constants.PoliciesCollection),
	}
}

func (r *MongoRepository) GetPolicy(ctx context.Context, ruleID string) (*Policy, error) {
	start := time.Now()

	var p Policy
	err := r.collection.FindOne(ctx, bson.M{"rule_id": ruleID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		observeQuery(start, nil)
		return nil, nil
	}
	observeQuery(start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to find policy: %w", err)
	}

	return &p, nil
}

func observeQuery(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("router", "mongodb", "get_policy", status)
	metrics.ObserveDatabaseQueryDuration("router", "mongodb", "get_policy", time.Since(start))
}

// CachedRepository caches policies per rule, including the absence of one.
type CachedRepository struct {
	policies *cache.Loader[*Policy]
}

func NewCachedRepository(repo Repository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		policies: cache.NewLoader("policies", ttl, repo.GetPolicy),
	}
}

func (r *CachedRepository) GetPolicy(ctx context.Context, ruleID string) (*Policy, error) {
	return r.policies.Get(ctx, ruleID)
}

// Invalidate drops the cached policy of ruleID, or every policy when
// ruleID is empty.
func (r *CachedRepository) Invalidate(ruleID string) {
	if ruleID == "" {
		r.policies.InvalidateAll()
		return
	}
	r.policies.Invalidate(ruleID)
}
