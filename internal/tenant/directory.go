package tenant

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"courier/internal/topic"
	pkgerrors "courier/pkg/errors"
)

// Directory resolves topic scope segments to tenants and sub-scopes. The
// resolution strategy is fixed at construction: alias mode looks segments up
// by alias, raw mode requires them to be syntactically valid storage ids and
// rejects anything else before touching the store.
type Directory struct {
	repo           Repository
	resolveAliases bool
}

func NewDirectory(repo Repository, resolveAliases bool) *Directory {
	return &Directory{repo: repo, resolveAliases: resolveAliases}
}

func (d *Directory) ResolveTenant(ctx context.Context, idOrAlias string) (*Tenant, error) {
	if d.resolveAliases {
		return d.repo.FindTenantByAlias(ctx, idOrAlias)
	}
	if !validObjectID(idOrAlias) {
		return nil, pkgerrors.ErrUnknownTenant.WithDetail("segment", idOrAlias)
	}
	return d.repo.FindTenantByID(ctx, idOrAlias)
}

func (d *Directory) ResolveSubScope(ctx context.Context, tenantID, idOrAlias string) (*SubScope, error) {
	if d.resolveAliases {
		return d.repo.FindSubScopeByAlias(ctx, tenantID, idOrAlias)
	}
	if !validObjectID(idOrAlias) {
		return nil, pkgerrors.ErrUnknownSubScope.WithDetail("segment", idOrAlias)
	}
	return d.repo.FindSubScopeByID(ctx, tenantID, idOrAlias)
}

// ResolveAddress resolves a parsed topic against the directory. The second
// segment is consumed as a sub-scope only when it resolves to one; otherwise
// it stays at the head of the relative path. Storage errors propagate.
func (d *Directory) ResolveAddress(ctx context.Context, addr topic.Address) (Resolution, error) {
	t, err := d.ResolveTenant(ctx, addr.Tenant)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Tenant: t, Path: addr.Rest}
	if len(addr.Rest) == 0 {
		return res, nil
	}

	s, err := d.ResolveSubScope(ctx, t.ID, addr.Rest[0])
	switch {
	case err == nil:
		res.SubScope = s
		res.Path = addr.Rest[1:]
	case pkgerrors.IsUnknown(err):
		// Not a sub-scope segment; the whole remainder is path.
	default:
		return Resolution{}, err
	}

	return res, nil
}

func (d *Directory) FindByKey(ctx context.Context, key string) (*Tenant, error) {
	return d.repo.FindTenantByKey(ctx, key)
}

func (d *Directory) FindByCredentials(ctx context.Context, key, secret string) (*Tenant, error) {
	return d.repo.FindTenantByCredentials(ctx, key, secret)
}

func validObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
