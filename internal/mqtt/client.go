// Package mqtt wraps paho.mqtt.golang with connection management,
// subscription restoration on reconnect and panic-safe message handlers.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"courier/internal/logger"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxQoS                   = 2
)

// Options configures a broker connection. TLS is optional and used by the
// external bridge for mutual-TLS endpoints.
type Options struct {
	URL              string
	ClientID         string
	Username         string
	Password         string
	TLS              *tls.Config
	ConnectTimeout   time.Duration
	AutoReconnect    bool
	OnConnect        func()
	OnConnectionLost func(err error)
}

// MessageHandler is invoked for each received message, in a goroutine owned
// by the paho library. Returned errors are logged, never acked back.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

type Client struct {
	client pahomqtt.Client
	log    logger.Logger

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex
}

// Connect builds a client from opts and waits for the initial connection.
func Connect(opts Options, log logger.Logger) (*Client, error) {
	c := &Client{
		log:           log,
		subscriptions: make(map[string]subscription),
	}

	pahoOpts := pahomqtt.NewClientOptions()
	pahoOpts.AddBroker(opts.URL)
	pahoOpts.SetClientID(opts.ClientID)
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
		pahoOpts.SetPassword(opts.Password)
	}
	if opts.TLS != nil {
		pahoOpts.SetTLSConfig(opts.TLS)
	}

	pahoOpts.SetCleanSession(true)
	pahoOpts.SetAutoReconnect(opts.AutoReconnect)
	pahoOpts.SetKeepAlive(defaultKeepAlive)
	// Each message is handled in its own goroutine so a slow side effect
	// never backpressures the subscription.
	pahoOpts.SetOrderMatters(false)

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pahoOpts.SetConnectTimeout(timeout)

	pahoOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.connMu.Lock()
		c.connected = true
		c.connMu.Unlock()

		c.restoreSubscriptions()

		if opts.OnConnect != nil {
			opts.OnConnect()
		}
	})

	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.connMu.Lock()
		c.connected = false
		c.connMu.Unlock()

		if opts.OnConnectionLost != nil {
			opts.OnConnectionLost(err)
		}
	})

	c.client = pahomqtt.NewClient(pahoOpts)
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs asynchronously and may not have fired yet;
	// mark connected here so IsConnected holds right after Connect returns.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, ClampQoS(qos), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers a handler for a topic pattern. Subscriptions are
// tracked and restored after a reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: ClampQoS(qos), handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, ClampQoS(qos), c.wrapHandler(handler))
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Errorw("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log.Warnw("MQTT handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}

func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

func (c *Client) Close() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

// ClampQoS bounds a QoS value to the valid MQTT range [0, 2].
func ClampQoS(qos byte) byte {
	if qos > maxQoS {
		return maxQoS
	}
	return qos
}
