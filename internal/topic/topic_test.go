package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantTenant string
		wantRest   []string
		wantError  bool
	}{
		{
			name:       "tenant with sub-scope and path",
			raw:        "a1/g1/sensors/temp",
			wantTenant: "a1",
			wantRest:   []string{"g1", "sensors", "temp"},
		},
		{
			name:       "single segment",
			raw:        "a1",
			wantTenant: "a1",
			wantRest:   []string{},
		},
		{
			name:       "feedback channel",
			raw:        "a1/g1/message",
			wantTenant: "a1",
			wantRest:   []string{"g1", "message"},
		},
		{
			name:      "empty tenant segment",
			raw:       "/g1/sensors",
			wantError: true,
		},
		{
			name:      "empty string",
			raw:       "",
			wantError: true,
		},
		{
			name:      "empty inner segment",
			raw:       "a1//sensors",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Parse(tt.raw)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidTopic(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTenant, addr.Tenant)
			assert.Equal(t, tt.wantRest, addr.Rest)
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	topics := []string{
		"a1",
		"a1/message",
		"a1/g1/message",
		"a1/g1/sensors/temp",
		"acme/building-3/floor/2/hvac",
	}

	for _, raw := range topics {
		t.Run(raw, func(t *testing.T) {
			addr, err := Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, addr.String())
		})
	}
}

func TestRoutingKeyMapping(t *testing.T) {
	addr, err := FromRoutingKey("a1.g1.sensors.temp")
	require.NoError(t, err)
	assert.Equal(t, "a1/g1/sensors/temp", addr.String())
	assert.Equal(t, "a1.g1.sensors.temp", addr.RoutingKey())
}

func TestIsFeedback(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"a1", true},
		{"a1/message", true},
		{"a1/g1/message", true},
		{"a1/g1/sensors/temp", false},
		{"a1/message/extra", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			addr, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.IsFeedback())
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a1/g1/sensors", Join("a1", "g1", "sensors"))
	assert.Equal(t, "a1/sensors", Join("a1", "", "sensors"))
}
