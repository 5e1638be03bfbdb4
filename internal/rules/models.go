package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is what a matching rule does with a message. Modeled as an enum so
// dispatch in the router is exhaustive; an unknown action coming out of the
// store is a decode error, not a silently ignored branch.
type Action string

const (
	ActionDiscard   Action = "discard"
	ActionRepublish Action = "republish"
	ActionEnqueue   Action = "enqueue"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionDiscard, ActionRepublish, ActionEnqueue:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown rule action %q", s)
}

// Rule is a declarative per-topic action owned by one tenant. Output is the
// target topic or queue name; Scope is the target tenant for cross-tenant
// republish/enqueue and defaults to the owning tenant when empty.
// Transformation is an opaque pass-through placeholder carried for the
// management layer; the router never interprets it.
type Rule struct {
	ID             string    `bson:"_id" json:"id"`
	TenantID       string    `bson:"tenant_id" json:"tenant_id"`
	Topic          string    `bson:"topic" json:"topic"`
	Action         Action    `bson:"action" json:"action"`
	Output         string    `bson:"output,omitempty" json:"output,omitempty"`
	Scope          string    `bson:"scope,omitempty" json:"scope,omitempty"`
	Transformation string    `bson:"transformation,omitempty" json:"transformation,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// TargetScope is the tenant id the rule's output lands under.
func (r Rule) TargetScope() string {
	if r.Scope != "" {
		return r.Scope
	}
	return r.TenantID
}

type StepStatus string

const (
	StepEnabled  StepStatus = "enabled"
	StepDisabled StepStatus = "disabled"
	// StepMissing marks a step whose module is no longer registered. A
	// missing step can only become enabled again through module
	// re-registration, handled by the external module registry.
	StepMissing StepStatus = "missing"
)

type IntegrationStatus string

const (
	IntegrationEnabled  IntegrationStatus = "enabled"
	IntegrationDisabled IntegrationStatus = "disabled"
)

// PipelineStep references a module and its stored invocation arguments.
type PipelineStep struct {
	ModuleID  string          `bson:"module_id" json:"module_id"`
	Arguments json.RawMessage `bson:"arguments,omitempty" json:"arguments,omitempty"`
	Status    StepStatus      `bson:"status" json:"status"`
}

// Integration binds a topic to an ordered module pipeline, the alternative
// to rules when the engine runs in integrations mode.
type Integration struct {
	ID        string            `bson:"_id" json:"id"`
	TenantID  string            `bson:"tenant_id" json:"tenant_id"`
	Topic     string            `bson:"topic" json:"topic"`
	Status    IntegrationStatus `bson:"status" json:"status"`
	Steps     []PipelineStep    `bson:"steps" json:"steps"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at" json:"updated_at"`
}

func (i *Integration) Enabled() bool {
	return i != nil && i.Status == IntegrationEnabled
}
