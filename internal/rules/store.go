package rules

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	pkgerrors "courier/pkg/errors"
)

// Reader is the read surface consumed by the authorization service and the
// message router. All decision logic lives in the consumers; the store only
// filters by tenant, topic and status.
type Reader interface {
	RulesFor(ctx context.Context, tenantID, topicPath string) ([]Rule, error)
	IntegrationFor(ctx context.Context, tenantID, topicPath string) (*Integration, error)
}

type Store interface {
	Reader
	CreateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id string) error
	CreateIntegration(ctx context.Context, integration *Integration) error
	DeleteIntegration(ctx context.Context, id string) error
}

const (
	rulesCollection        = "rules"
	integrationsCollection = "integrations"
)

type mongoStore struct {
	rules        *mongo.Collection
	integrations *mongo.Collection
}

func NewStore(db *mongo.Database) Store {
	return &mongoStore{
		rules:        db.Collection(rulesCollection),
		integrations: db.Collection(integrationsCollection),
	}
}

func (s *mongoStore) RulesFor(ctx context.Context, tenantID, topicPath string) ([]Rule, error) {
	cursor, err := s.rules.Find(ctx, bson.M{"tenant_id": tenantID, "topic": topicPath})
	if err != nil {
		return nil, pkgerrors.ErrStorage.WithCause(err)
	}
	defer cursor.Close(ctx)

	var matched []Rule
	if err := cursor.All(ctx, &matched); err != nil {
		return nil, pkgerrors.ErrStorage.WithCause(err)
	}

	return matched, nil
}

// IntegrationFor returns the enabled integration bound to the topic, or nil
// when none exists. Disabled integrations are invisible to authorization and
// routing by design.
func (s *mongoStore) IntegrationFor(ctx context.Context, tenantID, topicPath string) (*Integration, error) {
	filter := bson.M{
		"tenant_id": tenantID,
		"topic":     topicPath,
		"status":    IntegrationEnabled,
	}

	var integration Integration
	err := s.integrations.FindOne(ctx, filter).Decode(&integration)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.ErrStorage.WithCause(err)
	}

	return &integration, nil
}

func (s *mongoStore) CreateRule(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = primitive.NewObjectID().Hex()
	}
	if _, err := ParseAction(string(rule.Action)); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if _, err := s.rules.InsertOne(ctx, rule); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (s *mongoStore) DeleteRule(ctx context.Context, id string) error {
	res, err := s.rules.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

func (s *mongoStore) CreateIntegration(ctx context.Context, integration *Integration) error {
	if integration.ID == "" {
		integration.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	integration.CreatedAt = now
	integration.UpdatedAt = now

	if _, err := s.integrations.InsertOne(ctx, integration); err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}
	return nil
}

func (s *mongoStore) DeleteIntegration(ctx context.Context, id string) error {
	res, err := s.integrations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("integration not found")
	}
	return nil
}
