package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/internal/tenant"
	"courier/internal/topic"
	pkgerrors "courier/pkg/errors"
)

// aliasDirectory resolves names the way an alias-mode directory would.
type aliasDirectory struct {
	tenants   map[string]*tenant.Tenant
	subScopes map[string]*tenant.SubScope
}

func (d *aliasDirectory) ResolveAddress(_ context.Context, addr topic.Address) (tenant.Resolution, error) {
	t, ok := d.tenants[addr.Tenant]
	if !ok {
		return tenant.Resolution{}, pkgerrors.ErrUnknownTenant
	}
	res := tenant.Resolution{Tenant: t, Path: addr.Rest}
	if len(addr.Rest) > 0 {
		if ss, ok := d.subScopes[addr.Rest[0]]; ok && ss.TenantID == t.ID {
			res.SubScope = ss
			res.Path = addr.Rest[1:]
		}
	}
	return res, nil
}

func testBridge(aliases bool) *Bridge {
	dir := &aliasDirectory{
		tenants: map[string]*tenant.Tenant{
			"acme": {ID: "a1", Alias: "acme"},
		},
		subScopes: map[string]*tenant.SubScope{
			"floor": {ID: "g1", TenantID: "a1", Alias: "floor"},
		},
	}
	return New(config.BridgeConfig{Aliases: aliases}, dir, nil, logger.NopLogger())
}

func TestTranslateInbound(t *testing.T) {
	b := testBridge(true)
	ctx := context.Background()

	tests := []struct {
		name     string
		external string
		want     string
		wantErr  bool
	}{
		{"app tenant path", "app/acme/sensors/temp", "a1/sensors/temp", false},
		{"app with sub-scope", "app/acme/floor/temp", "a1/g1/temp", false},
		{"gw sub-scope", "gw/acme/floor/temp", "a1/g1/temp", false},
		{"gw feedback", "gw/acme/floor/message", "a1/g1/message", false},
		{"gw without sub-scope", "gw/acme/notasub/temp", "", true},
		{"unknown namespace", "telemetry/acme/temp", "", true},
		{"bare prefix", "app", "", true},
		{"unknown tenant", "app/ghost/temp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.translateInbound(ctx, tt.external)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExternalTopic(t *testing.T) {
	acme := &tenant.Tenant{ID: "a1", Alias: "acme"}
	floor := &tenant.SubScope{ID: "g1", TenantID: "a1", Alias: "floor"}

	tests := []struct {
		name    string
		aliases bool
		res     tenant.Resolution
		want    string
	}{
		{
			name:    "tenant feedback by alias",
			aliases: true,
			res:     tenant.Resolution{Tenant: acme, Path: []string{"status", "message"}},
			want:    "app/acme/status/message",
		},
		{
			name:    "tenant feedback by id",
			aliases: false,
			res:     tenant.Resolution{Tenant: acme, Path: []string{"status", "message"}},
			want:    "app/a1/status/message",
		},
		{
			name:    "sub-scope by alias",
			aliases: true,
			res:     tenant.Resolution{Tenant: acme, SubScope: floor, Path: []string{"message"}},
			want:    "gw/acme/floor/message",
		},
		{
			name:    "sub-scope by id",
			aliases: false,
			res:     tenant.Resolution{Tenant: acme, SubScope: floor, Path: []string{"message"}},
			want:    "gw/a1/g1/message",
		},
		{
			name:    "bare tenant topic",
			aliases: true,
			res:     tenant.Resolution{Tenant: acme},
			want:    "app/acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBridge(tt.aliases)
			assert.Equal(t, tt.want, b.externalTopic(tt.res))
		})
	}
}

func TestStateTransitions(t *testing.T) {
	b := testBridge(true)
	assert.Equal(t, StateDisabled, b.State())

	// Disable before any Enable is a no-op.
	b.Disable()
	assert.Equal(t, StateDisabled, b.State())
}
