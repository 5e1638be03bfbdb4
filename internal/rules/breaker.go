package rules

import (
	"context"

	"courier/pkg/circuitbreaker"
	pkgerrors "courier/pkg/errors"
)

// BreakerReader wraps rule store reads in a circuit breaker. Reads happen
// inside the broker's synchronous authorization hooks; when the store
// degrades the breaker opens and hooks deny fast with a storage error
// instead of stacking up slow lookups.
type BreakerReader struct {
	reader Reader
	cb     *circuitbreaker.Wrapper
}

func NewBreakerReader(reader Reader, cb *circuitbreaker.Wrapper) *BreakerReader {
	return &BreakerReader{reader: reader, cb: cb}
}

func (b *BreakerReader) RulesFor(ctx context.Context, tenantID, topicPath string) ([]Rule, error) {
	result, err := b.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return b.reader.RulesFor(ctx, tenantID, topicPath)
	})
	if err != nil {
		if b.cb.IsOpen() {
			return nil, pkgerrors.ErrStorage.WithCause(err).WithDetail("message", "rule store circuit open")
		}
		return nil, err
	}

	matched, ok := result.([]Rule)
	if !ok {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "rule store returned invalid result type")
	}
	return matched, nil
}

func (b *BreakerReader) IntegrationFor(ctx context.Context, tenantID, topicPath string) (*Integration, error) {
	result, err := b.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return b.reader.IntegrationFor(ctx, tenantID, topicPath)
	})
	if err != nil {
		if b.cb.IsOpen() {
			return nil, pkgerrors.ErrStorage.WithCause(err).WithDetail("message", "rule store circuit open")
		}
		return nil, err
	}

	integration, ok := result.(*Integration)
	if !ok {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "rule store returned invalid result type")
	}
	return integration, nil
}

var _ Reader = (*BreakerReader)(nil)
