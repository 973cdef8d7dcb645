package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"toolbridge/internal/domain"
	"toolbridge/internal/metrics"

	"github.com/google/uuid"
)

// DefaultCallTimeout bounds a single tool execution when the registry config
// does not set one.
const DefaultCallTimeout = 30 * time.Second

// Registry holds the fixed set of tools and routes requests to them. It is
// immutable after construction, so concurrent dispatch needs no locking.
type Registry struct {
	logger  *slog.Logger
	order   []string
	tools   map[string]domain.Tool
	timeout time.Duration
	audit   domain.AuditSink
	metrics *metrics.Collector
}

// RegistryConfig wires the registry's collaborators. Audit and Metrics are
// optional; a nil sink or collector disables that hook.
type RegistryConfig struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Audit   domain.AuditSink
	Metrics *metrics.Collector
}

// NewRegistry builds a registry from the given tools. Listing order follows
// the argument order. Empty and duplicate tool names are construction errors.
func NewRegistry(cfg RegistryConfig, tools ...domain.Tool) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	r := &Registry{
		logger:  logger,
		order:   make([]string, 0, len(tools)),
		tools:   make(map[string]domain.Tool, len(tools)),
		timeout: timeout,
		audit:   cfg.Audit,
		metrics: cfg.Metrics,
	}
	for _, t := range tools {
		name := t.Descriptor().Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
		logger.Debug("registered tool", "name", name)
	}
	return r, nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (domain.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Descriptors returns every tool descriptor in registration order.
func (r *Registry) Descriptors() []domain.ToolDescriptor {
	descs := make([]domain.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.tools[name].Descriptor())
	}
	return descs
}

// Dispatch resolves, validates, executes, and classifies one request. The
// returned error, when non-nil, is always a *domain.ToolError.
func (r *Registry) Dispatch(ctx context.Context, req domain.Request) (string, error) {
	start := time.Now()

	t, ok := r.tools[req.Name]
	if !ok {
		terr := domain.Errf(domain.ErrUnknownTool, "unknown tool: %s", req.Name)
		r.finish(ctx, req.Name, start, terr)
		return "", terr
	}

	desc := t.Descriptor()
	if terr := validateArgs(req.Arguments, desc.Schema); terr != nil {
		r.finish(ctx, req.Name, start, terr)
		return "", terr
	}

	r.logger.Info("executing tool", "tool", req.Name)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := t.Execute(callCtx, req.Arguments)
	if err != nil {
		terr := classify(err, desc.Effect, r.timeout)
		r.finish(ctx, req.Name, start, terr)
		return "", terr
	}

	r.logger.Debug("tool completed", "tool", req.Name, "duration_ms", time.Since(start).Milliseconds(), "payload_bytes", len(payload))
	r.finish(ctx, req.Name, start, nil)
	return payload, nil
}

// classify maps an execution error onto the closed error taxonomy. Tools
// return *domain.ToolError for everything they anticipate; anything else is
// folded in by the tool's declared effect.
func classify(err error, effect domain.Effect, timeout time.Duration) *domain.ToolError {
	if terr, ok := domain.AsToolError(err); ok {
		return terr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ToolError{
			Kind:    domain.ErrUpstream,
			Message: fmt.Sprintf("tool call timed out after %s", timeout),
			Err:     err,
		}
	}
	kind := domain.ErrIO
	if effect == domain.EffectNetwork {
		kind = domain.ErrUpstream
	}
	return &domain.ToolError{Kind: kind, Message: err.Error(), Err: err}
}

// finish runs the post-dispatch hooks: failure logging, counters, and the
// audit record. Hook failures are logged and never affect the call outcome.
func (r *Registry) finish(ctx context.Context, toolName string, start time.Time, terr *domain.ToolError) {
	elapsed := time.Since(start)

	outcome := "success"
	message := ""
	if terr != nil {
		outcome = string(terr.Kind)
		message = terr.Message
		r.logger.Warn("tool failed", "tool", toolName, "kind", terr.Kind, "error", terr.Message)
	}

	if r.metrics != nil {
		r.metrics.RecordInvocation(toolName)
		if terr != nil {
			r.metrics.RecordFailure(string(terr.Kind))
		}
	}

	if r.audit != nil {
		entry := domain.AuditEntry{
			ID:         uuid.NewString(),
			Tool:       toolName,
			Outcome:    outcome,
			Message:    message,
			DurationMS: elapsed.Milliseconds(),
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.audit.Record(ctx, entry); err != nil {
			r.logger.Warn("audit record failed", "tool", toolName, "error", err)
		}
	}
}
