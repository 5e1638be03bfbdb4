package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/pkg/circuitbreaker"
	pkgerrors "courier/pkg/errors"
)

type flakyReader struct {
	err   error
	calls int
}

func (f *flakyReader) RulesFor(context.Context, string, string) ([]Rule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []Rule{{ID: "r1", Action: ActionDiscard}}, nil
}

func (f *flakyReader) IntegrationFor(context.Context, string, string) (*Integration, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func TestBreakerReaderPassThrough(t *testing.T) {
	reader := &flakyReader{}
	br := NewBreakerReader(reader, circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("test")))

	matched, err := br.RulesFor(context.Background(), "a1", "sensors/temp")
	require.NoError(t, err)
	require.Len(t, matched, 1)

	integration, err := br.IntegrationFor(context.Background(), "a1", "sensors/temp")
	require.NoError(t, err)
	assert.Nil(t, integration, "absent integration stays nil through the breaker")
}

func TestBreakerReaderOpensOnRepeatedFailure(t *testing.T) {
	reader := &flakyReader{err: errors.New("store timeout")}
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.Timeout = time.Hour
	br := NewBreakerReader(reader, circuitbreaker.NewWrapper(cfg))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := br.RulesFor(ctx, "a1", "sensors/temp")
		require.Error(t, err)
	}

	callsBeforeOpen := reader.calls
	_, err := br.RulesFor(ctx, "a1", "sensors/temp")
	assert.True(t, pkgerrors.IsStorage(err), "open circuit must surface as a storage error")
	assert.Equal(t, callsBeforeOpen, reader.calls, "open circuit must not reach the store")
}

func TestBreakerReaderCancelledContext(t *testing.T) {
	reader := &flakyReader{}
	br := NewBreakerReader(reader, circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("test")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := br.RulesFor(ctx, "a1", "sensors/temp")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, reader.calls)
}
