// Package bridge mirrors local traffic to an external broker and back.
// Every resolved local message flows out through Forward; everything published
// under the external app/ and gw/ namespaces flows in and is republished
// locally under resolved ids.
package bridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/internal/mqtt"
	"courier/internal/tenant"
	"courier/internal/topic"
	"courier/pkg/metrics"
	"courier/pkg/retry"
)

type State string

const (
	StateDisabled   State = "disabled"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
	StateErrored    State = "errored"
)

const translateTimeout = 10 * time.Second

// Publisher is the local broker surface inbound external traffic lands on.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type Directory interface {
	ResolveAddress(ctx context.Context, addr topic.Address) (tenant.Resolution, error)
}

// Bridge is a supervised connection to one external broker. It is driven by
// Enable and Disable calls from its owner; there is no ambient event bus.
type Bridge struct {
	cfg   config.BridgeConfig
	dir   Directory
	local Publisher
	log   logger.Logger

	mu     sync.Mutex
	state  State
	client *mqtt.Client
	cancel context.CancelFunc
	lost   chan struct{}
	wg     sync.WaitGroup
}

func New(cfg config.BridgeConfig, dir Directory, local Publisher, log logger.Logger) *Bridge {
	return &Bridge{
		cfg:   cfg,
		dir:   dir,
		local: local,
		log:   log,
		state: StateDisabled,
	}
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Enable starts the connection supervisor. Calling Enable while the bridge is
// already connecting or connected is a no-op.
func (b *Bridge) Enable(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateConnecting, StateConnected:
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.setStateLocked(StateConnecting)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(runCtx)
	}()
	return nil
}

// Disable tears the connection down and stops the supervisor. Idempotent.
func (b *Bridge) Disable() {
	b.mu.Lock()
	if b.state == StateDisabled || b.state == StateClosed {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()

	b.mu.Lock()
	b.closeClientLocked()
	b.setStateLocked(StateClosed)
	b.mu.Unlock()
}

// run owns the connect/reconnect cycle. Each pass connects under exponential
// backoff, then blocks until the connection drops or the context ends. The
// loop never gives up while the context lives.
func (b *Bridge) run(ctx context.Context) {
	for {
		if err := b.connectWithBackoff(ctx); err != nil {
			if ctx.Err() == nil {
				// Permanent failure, e.g. unreadable certificate files.
				b.log.Errorw("External bridge cannot connect", "error", err)
				b.mu.Lock()
				b.setStateLocked(StateErrored)
				b.mu.Unlock()
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-b.lostCh():
			b.mu.Lock()
			b.closeClientLocked()
			b.setStateLocked(StateErrored)
			b.setStateLocked(StateConnecting)
			b.mu.Unlock()
		}
	}
}

func (b *Bridge) connectWithBackoff(ctx context.Context) error {
	policy := backoff.WithContext(retry.ExponentialBackoff(
		b.cfg.Reconnect.InitialInterval,
		b.cfg.Reconnect.MaxInterval,
		b.cfg.Reconnect.Multiplier,
	), ctx)

	return retry.Forever(policy, func() error {
		return b.connect(ctx)
	}, func(err error, next time.Duration) {
		b.log.Warnw("External bridge connect failed, retrying",
			"endpoint", b.cfg.Endpoint,
			"next_attempt_in", next,
			"error", err,
		)
	})
}

// connect builds a fresh TLS config and client on every attempt so rotated
// certificate files are picked up without a restart.
func (b *Bridge) connect(ctx context.Context) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}

	tlsCfg, err := b.loadTLS()
	if err != nil {
		// Unreadable or malformed PEM files will not fix themselves.
		return backoff.Permanent(err)
	}

	clientID := b.cfg.ClientID
	if clientID == "" {
		// Random suffix so a crashed instance's half-open session on the
		// external broker cannot reject the replacement connection.
		clientID = "courier-bridge-" + uuid.NewString()[:8]
	}

	lost := make(chan struct{})
	client, err := mqtt.Connect(mqtt.Options{
		URL:      b.cfg.Endpoint,
		ClientID: clientID,
		TLS:      tlsCfg,
		OnConnectionLost: func(err error) {
			b.log.Warnw("External bridge connection lost", "endpoint", b.cfg.Endpoint, "error", err)
			close(lost)
		},
	}, b.log)
	if err != nil {
		return err
	}

	for _, pattern := range []string{prefixApp + "/#", prefixGw + "/#"} {
		if err := client.Subscribe(pattern, 0, b.handleInbound); err != nil {
			client.Close()
			return fmt.Errorf("subscribe %s: %w", pattern, err)
		}
	}

	b.mu.Lock()
	b.client = client
	b.lost = lost
	b.setStateLocked(StateConnected)
	b.mu.Unlock()

	b.log.Infow("External bridge connected", "endpoint", b.cfg.Endpoint, "aliases", b.cfg.Aliases)
	return nil
}

func (b *Bridge) loadTLS() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(b.cfg.Certificate, b.cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	caPEM, err := os.ReadFile(b.cfg.CA)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("CA bundle %s contains no certificates", b.cfg.CA)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// handleInbound republishes one external message locally. Unresolvable names
// are dropped with a log line; the external side is not authoritative over
// the local tenant directory.
func (b *Bridge) handleInbound(rawTopic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), translateTimeout)
	defer cancel()

	local, err := b.translateInbound(ctx, rawTopic)
	if err != nil {
		metrics.BridgeMessagesTotal.WithLabelValues("in", "dropped").Inc()
		b.log.Warnw("Dropping untranslatable external message", "topic", rawTopic, "error", err)
		return nil
	}

	if err := b.local.Publish(local, payload, 0, false); err != nil {
		metrics.BridgeMessagesTotal.WithLabelValues("in", "error").Inc()
		return fmt.Errorf("local republish of %s: %w", rawTopic, err)
	}
	metrics.BridgeMessagesTotal.WithLabelValues("in", "ok").Inc()
	return nil
}

// Forward mirrors a local message to the external broker with the payload
// untouched. Messages arriving while the bridge is not connected are dropped;
// mirrored traffic has no durability contract across the bridge.
func (b *Bridge) Forward(res tenant.Resolution, payload []byte) {
	b.mu.Lock()
	client := b.client
	state := b.state
	b.mu.Unlock()

	if state != StateConnected || client == nil {
		metrics.BridgeMessagesTotal.WithLabelValues("out", "dropped").Inc()
		b.log.Debugw("Bridge not connected, dropping outbound message", "state", state)
		return
	}

	ext := b.externalTopic(res)
	if err := client.Publish(ext, payload, 0, false); err != nil {
		metrics.BridgeMessagesTotal.WithLabelValues("out", "error").Inc()
		b.log.Warnw("External publish failed", "topic", ext, "error", err)
		return
	}
	metrics.BridgeMessagesTotal.WithLabelValues("out", "ok").Inc()
}

func (b *Bridge) lostCh() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lost
}

func (b *Bridge) closeClientLocked() {
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	b.lost = nil
}

func (b *Bridge) setStateLocked(s State) {
	if b.state == s {
		return
	}
	b.log.Infow("Bridge state transition", "from", b.state, "to", s)
	b.state = s
	metrics.BridgeStateTransitionsTotal.WithLabelValues(string(s)).Inc()
}
