package bridge

import (
	"context"
	"fmt"
	"strings"

	"courier/internal/tenant"
	"courier/internal/topic"
)

// External namespace prefixes. app carries tenant-level traffic, gw carries
// sub-scope traffic and requires the sub-scope segment.
const (
	prefixApp = "app"
	prefixGw  = "gw"
)

// translateInbound maps an external topic onto the local topic space:
// app/<tenant>[/<sub>]/<path...> or gw/<tenant>/<sub>/<path...> become
// <tenantID>[/<subID>]/<path...>. The directory decides whether names are
// aliases or raw ids.
func (b *Bridge) translateInbound(ctx context.Context, raw string) (string, error) {
	prefix, rest, ok := strings.Cut(raw, topic.Separator)
	if !ok {
		return "", fmt.Errorf("external topic %q has no local part", raw)
	}
	if prefix != prefixApp && prefix != prefixGw {
		return "", fmt.Errorf("unknown external namespace %q", prefix)
	}

	addr, err := topic.Parse(rest)
	if err != nil {
		return "", err
	}

	res, err := b.dir.ResolveAddress(ctx, addr)
	if err != nil {
		return "", err
	}
	if prefix == prefixGw && res.SubScope == nil {
		return "", fmt.Errorf("gateway topic %q does not name a sub-scope", raw)
	}

	return localTopic(res), nil
}

func localTopic(res tenant.Resolution) string {
	sub := ""
	if res.SubScope != nil {
		sub = res.SubScope.ID
	}
	return topic.Join(res.Tenant.ID, sub, res.RelativePath())
}

// externalTopic re-prefixes a resolved local address into the external
// namespace, using aliases or raw ids per the bridge's naming mode.
func (b *Bridge) externalTopic(res tenant.Resolution) string {
	tenantName := res.Tenant.ID
	if b.cfg.Aliases {
		tenantName = res.Tenant.Alias
	}

	if res.SubScope != nil {
		subName := res.SubScope.ID
		if b.cfg.Aliases {
			subName = res.SubScope.Alias
		}
		return topic.Join(prefixGw, tenantName, subName, res.RelativePath())
	}
	return topic.Join(prefixApp, tenantName, res.RelativePath())
}
