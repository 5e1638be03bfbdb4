// Package migrations bootstraps the MongoDB indexes the lookup paths depend
// on. Index creation is idempotent and runs at startup.
package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes behind credential authentication, alias
// resolution and rule matching. Authentication sits on the broker's
// connection-setup path, so the key/secret index is not optional.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	plans := map[string][]mongo.IndexModel{
		"tenants": {
			{
				Keys:    bson.D{{Key: "alias", Value: 1}},
				Options: options.Index().SetName("idx_tenants_alias").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "key", Value: 1}, {Key: "secret", Value: 1}},
				Options: options.Index().SetName("idx_tenants_credentials"),
			},
		},
		"subscopes": {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "alias", Value: 1}},
				Options: options.Index().SetName("idx_subscopes_tenant_alias").SetUnique(true),
			},
		},
		"rules": {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "topic", Value: 1}},
				Options: options.Index().SetName("idx_rules_tenant_topic"),
			},
		},
		"integrations": {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "topic", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("idx_integrations_tenant_topic_status"),
			},
		},
	}

	for collection, indexes := range plans {
		_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create %s indexes: %w", collection, err)
		}
	}
	return nil
}
