// Package queue is the durable-queue backend for enqueue rule actions.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"courier/internal/config"
	"courier/internal/logger"
)

const (
	defaultBatchTimeout = 10 * time.Millisecond
	defaultWriteTimeout = 10 * time.Second
)

type Client interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
	Close() error
}

// KafkaClient writes enqueued payloads to per-queue topics. The writer is
// constructed lazily on the first enqueue so the router starts without a
// reachable queue backend; missing topics are created on demand.
type KafkaClient struct {
	cfg config.KafkaConfig
	log logger.Logger

	mu     sync.Mutex
	writer *kafka.Writer
}

func NewKafkaClient(cfg config.KafkaConfig, log logger.Logger) *KafkaClient {
	return &KafkaClient{cfg: cfg, log: log}
}

func (c *KafkaClient) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if queue == "" {
		return fmt.Errorf("queue name cannot be empty")
	}

	err := c.getWriter().WriteMessages(ctx, kafka.Message{
		Topic: QueueName(queue),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue to %s: %w", queue, err)
	}
	return nil
}

func (c *KafkaClient) getWriter() *kafka.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writer == nil {
		batchTimeout := c.cfg.BatchTimeout
		if batchTimeout <= 0 {
			batchTimeout = defaultBatchTimeout
		}
		writeTimeout := c.cfg.WriteTimeout
		if writeTimeout <= 0 {
			writeTimeout = defaultWriteTimeout
		}

		c.writer = &kafka.Writer{
			Addr:                   kafka.TCP(c.cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           batchTimeout,
			WriteTimeout:           writeTimeout,
			AllowAutoTopicCreation: true,
			Async:                  false,
		}
		c.log.Infow("Queue writer created", "brokers", c.cfg.Brokers)
	}
	return c.writer
}

func (c *KafkaClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writer == nil {
		return nil
	}
	err := c.writer.Close()
	c.writer = nil
	return err
}

// QueueName maps a scope/output pair onto the queue backend's flat topic
// namespace, which does not admit slashes.
func QueueName(queue string) string {
	return strings.ReplaceAll(queue, "/", ".")
}
