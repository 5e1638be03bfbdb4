// Package router consumes every message accepted by the broker and executes
// the side effects its tenant configured: discard, republish on a derived
// topic, enqueue to a durable queue, or run an integration pipeline.
package router

import (
	"context"
	"encoding/json"
	"time"

	"courier/internal/authz"
	"courier/internal/logger"
	"courier/internal/mqtt"
	"courier/internal/queue"
	"courier/internal/rules"
	"courier/internal/tenant"
	"courier/internal/topic"
	pkgerrors "courier/pkg/errors"
	"courier/pkg/metrics"
)

// wildcard covers all tenant and sub-scope traffic on the local broker.
const wildcard = "+/#"

const evaluateTimeout = 30 * time.Second

// Publisher is the broker-facing surface the router publishes through.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type Directory interface {
	ResolveAddress(ctx context.Context, addr topic.Address) (tenant.Resolution, error)
}

// ModuleRunner invokes an integration pipeline step's module. Modules are
// external collaborators; only the invocation contract lives here.
type ModuleRunner interface {
	Run(ctx context.Context, moduleID string, args json.RawMessage, payload []byte) ([]byte, error)
}

// Forwarder mirrors resolved local traffic to the external bridge.
type Forwarder interface {
	Forward(res tenant.Resolution, payload []byte)
}

type Router struct {
	pub     Publisher
	dir     Directory
	store   rules.Reader
	queue   queue.Client
	modules ModuleRunner
	forward Forwarder
	mode    authz.Mode
	qos     byte
	log     logger.Logger
}

type Option func(*Router)

func WithForwarder(f Forwarder) Option {
	return func(r *Router) { r.forward = f }
}

func WithModuleRunner(m ModuleRunner) Option {
	return func(r *Router) { r.modules = m }
}

func WithQoS(qos byte) Option {
	return func(r *Router) { r.qos = mqtt.ClampQoS(qos) }
}

func New(pub Publisher, dir Directory, store rules.Reader, q queue.Client, mode authz.Mode, log logger.Logger, opts ...Option) *Router {
	r := &Router{
		pub:   pub,
		dir:   dir,
		store: store,
		queue: q,
		mode:  mode,
		log:   log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the broker-wide wildcard. The subscription survives
// reconnects via the client's restoration logic.
func (r *Router) Start(client *mqtt.Client) error {
	return client.Subscribe(wildcard, r.qos, r.HandleMessage)
}

// HandleMessage evaluates one inbound message. Every failure is contained
// here: a bad topic, a deleted rule or a failing module is logged and the
// subscription loop moves on.
func (r *Router) HandleMessage(rawTopic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
	defer cancel()

	addr, err := topic.Parse(rawTopic)
	if err != nil {
		r.log.Warnw("Dropping message with malformed topic", "topic", rawTopic, "error", err)
		return nil
	}

	res, err := r.dir.ResolveAddress(ctx, addr)
	if err != nil {
		if pkgerrors.IsUnknown(err) {
			r.log.Debugw("Dropping message for unknown scope", "topic", rawTopic)
		} else {
			r.log.Errorw("Scope resolution failed", "topic", rawTopic, "error", err)
		}
		return nil
	}

	// The bridge mirrors every resolved message, payload untouched. It is an
	// independent data path and never gates rule or pipeline execution.
	if r.forward != nil {
		r.forward.Forward(res, payload)
	}

	if addr.IsFeedback() {
		// Owner-bound traffic is not routable.
		return nil
	}

	switch r.mode {
	case authz.ModeIntegrations:
		r.runPipeline(ctx, res, payload)
	default:
		r.applyRules(ctx, res, payload)
	}
	return nil
}

// applyRules executes every rule matching the tenant and relative path.
// Rules run independently and in no guaranteed order; one failing rule does
// not stop the others.
func (r *Router) applyRules(ctx context.Context, res tenant.Resolution, payload []byte) {
	path := res.RelativePath()

	matched, err := r.store.RulesFor(ctx, res.Tenant.ID, path)
	if err != nil {
		r.log.Errorw("Rule lookup failed", "tenant", res.Tenant.ID, "path", path, "error", err)
		return
	}

	for _, rule := range matched {
		if err := r.applyRule(ctx, rule, payload); err != nil {
			metrics.RoutedMessagesTotal.WithLabelValues(string(rule.Action), "error").Inc()
			r.log.Errorw("Rule action failed",
				"rule_id", rule.ID,
				"action", rule.Action,
				"error", err,
			)
			continue
		}
		metrics.RoutedMessagesTotal.WithLabelValues(string(rule.Action), "ok").Inc()
	}
}

func (r *Router) applyRule(ctx context.Context, rule rules.Rule, payload []byte) error {
	switch rule.Action {
	case rules.ActionDiscard:
		return nil
	case rules.ActionRepublish:
		// Payload is republished unmodified; only the topic is derived.
		return r.pub.Publish(topic.Join(rule.TargetScope(), rule.Output), payload, r.qos, false)
	case rules.ActionEnqueue:
		return r.queue.Enqueue(ctx, topic.Join(rule.TargetScope(), rule.Output), payload)
	default:
		return pkgerrors.ErrInternal.WithDetail("message", "unhandled rule action "+string(rule.Action))
	}
}

// runPipeline executes the enabled integration bound to the topic, feeding
// each enabled step's output into the next. Disabled and missing steps are
// skipped; a step failure abandons the rest of the pipeline for this message.
func (r *Router) runPipeline(ctx context.Context, res tenant.Resolution, payload []byte) {
	path := res.RelativePath()

	integration, err := r.store.IntegrationFor(ctx, res.Tenant.ID, path)
	if err != nil {
		r.log.Errorw("Integration lookup failed", "tenant", res.Tenant.ID, "path", path, "error", err)
		return
	}
	if !integration.Enabled() {
		return
	}
	if r.modules == nil {
		r.log.Warnw("No module runner attached, skipping pipeline", "integration_id", integration.ID)
		return
	}

	current := payload
	for i, step := range integration.Steps {
		if step.Status != rules.StepEnabled {
			continue
		}

		out, err := r.modules.Run(ctx, step.ModuleID, step.Arguments, current)
		if err != nil {
			metrics.RoutedMessagesTotal.WithLabelValues("pipeline", "error").Inc()
			r.log.Errorw("Pipeline step failed",
				"integration_id", integration.ID,
				"step", i,
				"module_id", step.ModuleID,
				"error", err,
			)
			return
		}
		current = out
	}
	metrics.RoutedMessagesTotal.WithLabelValues("pipeline", "ok").Inc()
}
