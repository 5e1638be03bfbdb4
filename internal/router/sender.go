package router

import (
	"context"

	"courier/internal/authz"
	"courier/internal/mqtt"
	pkgerrors "courier/pkg/errors"
)

// Authorizer is the slice of the authorization service SendMessage needs.
type Authorizer interface {
	Authenticate(ctx context.Context, key, secret string) (string, error)
	AuthorizePublish(ctx context.Context, key, rawTopic string, trackStats bool) (authz.Direction, error)
}

// SendOptions are the per-message publish knobs.
type SendOptions struct {
	QoS    byte
	Retain bool
}

// Sender is the programmatic publish path: callers present credentials per
// message instead of holding a broker connection of their own.
type Sender struct {
	authz Authorizer
	pub   Publisher
}

func NewSender(authz Authorizer, pub Publisher) *Sender {
	return &Sender{authz: authz, pub: pub}
}

// SendMessage authenticates the credential pair, authorizes the publish with
// stats tracking, and publishes the payload. Authorization failures come back
// as the same typed errors the broker hooks produce.
func (s *Sender) SendMessage(ctx context.Context, key, secret, topic string, payload []byte, opts SendOptions) error {
	if _, err := s.authz.Authenticate(ctx, key, secret); err != nil {
		return err
	}
	if _, err := s.authz.AuthorizePublish(ctx, key, topic, true); err != nil {
		return err
	}
	if err := s.pub.Publish(topic, payload, mqtt.ClampQoS(opts.QoS), opts.Retain); err != nil {
		// Broker faults are infrastructure errors, not denials.
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return nil
}
