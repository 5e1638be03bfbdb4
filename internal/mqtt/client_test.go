package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampQoS(t *testing.T) {
	tests := []struct {
		in   byte
		want byte
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{255, 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampQoS(tt.in))
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	err := c.Publish("", []byte("x"), 0, false)
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	err := c.Subscribe("", 0, func(string, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyTopic)

	err = c.Subscribe("a/#", 0, nil)
	assert.ErrorIs(t, err, ErrSubscribeFailed)
}
