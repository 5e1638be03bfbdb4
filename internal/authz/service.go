// Package authz answers the broker's three questions: may this credential
// connect, may it publish or subscribe to this exact topic, and in which
// direction the message flows. Decisions are synchronous and must come back
// within the broker's connection-setup window; the only suspension points
// are store lookups.
package authz

import (
	"context"

	"courier/internal/logger"
	"courier/internal/rules"
	"courier/internal/tenant"
	"courier/internal/topic"
	pkgerrors "courier/pkg/errors"
)

// Mode selects whether publish decisions consult declarative rules or
// integration pipelines. Injected at construction; never read from ambient
// configuration mid-flight.
type Mode int

const (
	ModeRules Mode = iota
	ModeIntegrations
)

func ParseMode(s string) (Mode, bool) {
	switch s {
	case "rules":
		return ModeRules, true
	case "integrations":
		return ModeIntegrations, true
	}
	return ModeRules, false
}

func (m Mode) String() string {
	if m == ModeIntegrations {
		return "integrations"
	}
	return "rules"
}

// Direction classifies an authorized publish. Feedback channels carry
// tenant/sub-scope traffic back to its owner and flow out; everything else
// flows in and is subject to rule or integration checks.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "out"
	}
	return "in"
}

// Identity is the reserved credential of the message router itself. It
// authenticates to a fixed name without a store lookup so the router can be
// a broker client without a stored pseudo-tenant that someone could delete.
type Identity struct {
	Name   string
	Key    string
	Secret string
}

func (i Identity) matches(key string) bool {
	return key != "" && key == i.Key
}

type Directory interface {
	ResolveAddress(ctx context.Context, addr topic.Address) (tenant.Resolution, error)
	FindByKey(ctx context.Context, key string) (*tenant.Tenant, error)
	FindByCredentials(ctx context.Context, key, secret string) (*tenant.Tenant, error)
}

type Stats interface {
	RecordIngress(res tenant.Resolution)
	RecordEgress(res tenant.Resolution)
}

type Service struct {
	dir    Directory
	store  rules.Reader
	stats  Stats
	mode   Mode
	system Identity
	log    logger.Logger
}

func NewService(dir Directory, store rules.Reader, stats Stats, mode Mode, system Identity, log logger.Logger) *Service {
	return &Service{
		dir:    dir,
		store:  store,
		stats:  stats,
		mode:   mode,
		system: system,
		log:    log,
	}
}

func (s *Service) Mode() Mode {
	return s.mode
}

// Authenticate resolves a credential pair to a principal name. The reserved
// system pair short-circuits to the fixed system name; anything else must
// match a stored tenant's key and secret exactly.
func (s *Service) Authenticate(ctx context.Context, key, secret string) (string, error) {
	if s.system.matches(key) {
		if secret == s.system.Secret {
			return s.system.Name, nil
		}
		return "", pkgerrors.ErrInvalidCredentials
	}

	t, err := s.dir.FindByCredentials(ctx, key, secret)
	if err != nil {
		return "", err
	}
	return t.Alias, nil
}

// AuthorizePublish decides whether the credential may publish to the topic
// and classifies the message direction. When trackStats is set, counter
// increments are dispatched fire-and-forget on success; a failed increment
// never fails the decision.
func (s *Service) AuthorizePublish(ctx context.Context, key, rawTopic string, trackStats bool) (Direction, error) {
	addr, err := topic.Parse(rawTopic)
	if err != nil {
		return DirectionIn, err
	}

	res, err := s.dir.ResolveAddress(ctx, addr)
	if err != nil {
		return DirectionIn, err
	}

	if !s.system.matches(key) {
		if err := s.checkOwnership(ctx, key, res); err != nil {
			return DirectionIn, err
		}
	}

	if addr.IsFeedback() {
		// Tenant or sub-scope reporting back to its owner. Always allowed
		// once ownership holds; no rule binds a feedback channel.
		if trackStats {
			s.stats.RecordEgress(res)
		}
		return DirectionOut, nil
	}

	if err := s.checkBinding(ctx, res); err != nil {
		return DirectionIn, err
	}

	if trackStats {
		s.stats.RecordIngress(res)
	}
	return DirectionIn, nil
}

// AuthorizeSubscribe decides whether the credential may subscribe to the
// topic. A tenant may always subscribe within its own subtree; subscription
// is tenant-private by construction, so no rule lookup happens. The system
// identity subscribes to anything since it must observe all traffic to
// route it. No stats are recorded for subscriptions.
func (s *Service) AuthorizeSubscribe(ctx context.Context, key, rawTopic string) error {
	if s.system.matches(key) {
		return nil
	}

	addr, err := topic.Parse(rawTopic)
	if err != nil {
		return err
	}

	caller, err := s.dir.FindByKey(ctx, key)
	if err != nil {
		return err
	}

	owner, err := s.dir.ResolveAddress(ctx, addr)
	if err != nil {
		return err
	}

	if owner.Tenant.ID != caller.ID {
		return pkgerrors.ErrUnauthorizedTopic.WithDetail("message", "cross-tenant subscribe denied")
	}
	return nil
}

// checkOwnership denies any publish whose topic tenant segment does not
// resolve to the caller's own tenant. Cross-tenant publish is never allowed,
// regardless of mode.
func (s *Service) checkOwnership(ctx context.Context, key string, res tenant.Resolution) error {
	caller, err := s.dir.FindByKey(ctx, key)
	if err != nil {
		if pkgerrors.IsUnknown(err) {
			return pkgerrors.ErrInvalidCredentials
		}
		return err
	}

	if res.Tenant.ID != caller.ID {
		return pkgerrors.ErrUnauthorizedTopic.WithDetail("message", "cross-tenant publish denied")
	}
	return nil
}

// checkBinding requires a rule (rules mode) or an enabled integration
// (integrations mode) bound to the tenant and relative path. Absence is an
// authorization failure, not an error.
func (s *Service) checkBinding(ctx context.Context, res tenant.Resolution) error {
	path := res.RelativePath()

	switch s.mode {
	case ModeIntegrations:
		integration, err := s.store.IntegrationFor(ctx, res.Tenant.ID, path)
		if err != nil {
			return err
		}
		if !integration.Enabled() {
			return pkgerrors.ErrUnauthorizedTopic.WithDetail("topic", path)
		}
		return nil
	default:
		matched, err := s.store.RulesFor(ctx, res.Tenant.ID, path)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			return pkgerrors.ErrUnauthorizedTopic.WithDetail("topic", path)
		}
		return nil
	}
}
