package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"courier/internal/config"
	"courier/internal/logger"
)

func TestQueueName(t *testing.T) {
	assert.Equal(t, "a1.archive", QueueName("a1/archive"))
	assert.Equal(t, "a1.sensors.temp", QueueName("a1/sensors/temp"))
	assert.Equal(t, "plain", QueueName("plain"))
}

func TestEnqueueValidation(t *testing.T) {
	c := NewKafkaClient(config.KafkaConfig{}, logger.NopLogger())

	err := c.Enqueue(context.Background(), "", []byte("x"))
	assert.Error(t, err)
	assert.NoError(t, c.Close())
}
