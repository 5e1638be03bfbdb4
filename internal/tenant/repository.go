package tenant

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	pkgerrors "courier/pkg/errors"
)

type Repository interface {
	FindTenantByID(ctx context.Context, id string) (*Tenant, error)
	FindTenantByAlias(ctx context.Context, alias string) (*Tenant, error)
	FindTenantByKey(ctx context.Context, key string) (*Tenant, error)
	FindTenantByCredentials(ctx context.Context, key, secret string) (*Tenant, error)
	FindSubScopeByID(ctx context.Context, tenantID, id string) (*SubScope, error)
	FindSubScopeByAlias(ctx context.Context, tenantID, alias string) (*SubScope, error)
	IncTenantCounters(ctx context.Context, id string, in, out int64) error
	IncSubScopeCounters(ctx context.Context, id string, in, out int64) error
}

const (
	tenantsCollection   = "tenants"
	subScopesCollection = "subscopes"
)

type mongoRepository struct {
	tenants   *mongo.Collection
	subScopes *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		tenants:   db.Collection(tenantsCollection),
		subScopes: db.Collection(subScopesCollection),
	}
}

func (r *mongoRepository) findTenant(ctx context.Context, filter bson.M) (*Tenant, error) {
	var t Tenant
	err := r.tenants.FindOne(ctx, filter).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, pkgerrors.ErrUnknownTenant
	}
	if err != nil {
		return nil, pkgerrors.ErrStorage.WithCause(err)
	}
	return &t, nil
}

func (r *mongoRepository) FindTenantByID(ctx context.Context, id string) (*Tenant, error) {
	return r.findTenant(ctx, bson.M{"_id": id})
}

func (r *mongoRepository) FindTenantByAlias(ctx context.Context, alias string) (*Tenant, error) {
	return r.findTenant(ctx, bson.M{"alias": alias})
}

func (r *mongoRepository) FindTenantByKey(ctx context.Context, key string) (*Tenant, error) {
	return r.findTenant(ctx, bson.M{"key": key})
}

func (r *mongoRepository) FindTenantByCredentials(ctx context.Context, key, secret string) (*Tenant, error) {
	t, err := r.findTenant(ctx, bson.M{"key": key, "secret": secret})
	if pkgerrors.IsUnknown(err) {
		return nil, pkgerrors.ErrInvalidCredentials
	}
	return t, err
}

func (r *mongoRepository) findSubScope(ctx context.Context, filter bson.M) (*SubScope, error) {
	var s SubScope
	err := r.subScopes.FindOne(ctx, filter).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, pkgerrors.ErrUnknownSubScope
	}
	if err != nil {
		return nil, pkgerrors.ErrStorage.WithCause(err)
	}
	return &s, nil
}

func (r *mongoRepository) FindSubScopeByID(ctx context.Context, tenantID, id string) (*SubScope, error) {
	return r.findSubScope(ctx, bson.M{"_id": id, "tenant_id": tenantID})
}

func (r *mongoRepository) FindSubScopeByAlias(ctx context.Context, tenantID, alias string) (*SubScope, error) {
	return r.findSubScope(ctx, bson.M{"alias": alias, "tenant_id": tenantID})
}

// Counter updates use $inc so concurrent authorizations never lose updates;
// a read-modify-write here would race under broker load.
func (r *mongoRepository) IncTenantCounters(ctx context.Context, id string, in, out int64) error {
	update := bson.M{"$inc": bson.M{"messages_in": in, "messages_out": out}}
	res, err := r.tenants.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to increment tenant counters: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrUnknownTenant
	}
	return nil
}

func (r *mongoRepository) IncSubScopeCounters(ctx context.Context, id string, in, out int64) error {
	update := bson.M{"$inc": bson.M{"messages_in": in, "messages_out": out}}
	res, err := r.subScopes.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to increment sub-scope counters: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrUnknownSubScope
	}
	return nil
}
