package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, valid := range []string{"discard", "republish", "enqueue"} {
		got, err := ParseAction(valid)
		require.NoError(t, err)
		assert.Equal(t, Action(valid), got)
	}

	_, err := ParseAction("forward")
	assert.Error(t, err)

	_, err = ParseAction("")
	assert.Error(t, err)
}

func TestTargetScope(t *testing.T) {
	owned := Rule{TenantID: "a1", Action: ActionRepublish, Output: "hot"}
	assert.Equal(t, "a1", owned.TargetScope())

	scoped := Rule{TenantID: "a1", Scope: "b2", Action: ActionRepublish, Output: "hot"}
	assert.Equal(t, "b2", scoped.TargetScope())
}

func TestIntegrationEnabled(t *testing.T) {
	var none *Integration
	assert.False(t, none.Enabled())

	assert.False(t, (&Integration{Status: IntegrationDisabled}).Enabled())
	assert.True(t, (&Integration{Status: IntegrationEnabled}).Enabled())
}
