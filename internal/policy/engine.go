package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelrun/genie/internal/log"
	"github.com/kestrelrun/genie/internal/worker"
)

// Deliver injects an approval keystroke into the originating pane. The
// engine never talks to the multiplexer itself; this is typically
// worker.Resolver + tmux.Multiplexer.SendKeys composed by the caller.
type Deliver func(ctx context.Context, paneID string) error

// Engine evaluates PermissionRequests against a compiled AutoApproveConfig,
// producing an audited Decision and invoking approval delivery when the
// verdict is approve. It is a one-at-a-time state machine: {stopped,
// running}.
type Engine struct {
	mu      sync.Mutex
	running bool
	stats   Stats

	config  *AutoApproveConfig
	audit   *AuditLog
	deliver Deliver
}

// NewEngine returns a stopped Engine over config, persisting audit entries
// via audit and delivering approvals via deliver.
func NewEngine(config *AutoApproveConfig, audit *AuditLog, deliver Deliver) *Engine {
	return &Engine{config: config, audit: audit, deliver: deliver}
}

// Start transitions the engine to running and resets its stats. Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	e.stats = Stats{}
}

// Stop transitions the engine to stopped. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

// Stats returns the running counters since the last Start.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// SetConfig swaps the compiled config used by subsequent evaluations, e.g.
// after a config file change is detected.
func (e *Engine) SetConfig(config *AutoApproveConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = config
}

// Evaluate runs the decision algorithm for req and carries out the
// delivery contract: persist audit before delivering, downgrade on audit
// failure, and never crash on a delivery failure.
func (e *Engine) Evaluate(ctx context.Context, req PermissionRequest) (Decision, error) {
	e.mu.Lock()
	running := e.running
	config := e.config
	e.mu.Unlock()

	if !running {
		return Decision{Action: ActionEscalate, Reason: "engine not running"}, nil
	}

	decision := e.decide(req, config)

	if decision.Action == ActionApprove && !worker.IsValidPaneID(req.PaneID) {
		decision = Decision{Action: ActionEscalate, Reason: fmt.Sprintf("invalid pane handle %q", req.PaneID)}
	}

	entry := e.buildAuditEntry(req, decision, "")
	if err := e.audit.Append(entry); err != nil {
		decision = Decision{Action: ActionEscalate, Reason: "downgraded to escalate: audit write failed: " + err.Error()}
		// Best-effort: try once more to record the downgraded decision. If
		// this also fails the engine still returns the decision rather
		// than crash.
		_ = e.audit.Append(e.buildAuditEntry(req, decision, ""))
	}

	if decision.Action == ActionApprove {
		if err := e.deliver(ctx, req.PaneID); err != nil {
			log.ErrorErr(log.CatPolicy, "approval delivery failed", err, "pane", req.PaneID)
			_ = e.audit.Append(e.buildAuditEntry(req, decision, "delivery_failure"))
		}
	}

	e.mu.Lock()
	e.stats.Total++
	switch decision.Action {
	case ActionApprove:
		e.stats.Approved++
	case ActionDeny:
		e.stats.Denied++
	case ActionEscalate:
		e.stats.Escalated++
	}
	e.mu.Unlock()

	return decision, nil
}

func (e *Engine) buildAuditEntry(req PermissionRequest, decision Decision, category string) AuditEntry {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return AuditEntry{
		Timestamp: ts,
		PaneID:    req.PaneID,
		ToolName:  req.ToolName,
		WishID:    req.WishID,
		Action:    decision.Action,
		Reason:    decision.Reason,
		Category:  category,
	}
}

// decide runs the pure decision algorithm (spec §4.1 steps 1-7) with no
// side effects.
func (e *Engine) decide(req PermissionRequest, config *AutoApproveConfig) Decision {
	if config.Defaults.Deny[req.ToolName] {
		return Decision{Action: ActionDeny, Reason: fmt.Sprintf("tool %q is denied", req.ToolName)}
	}
	if !config.Defaults.Allow[req.ToolName] {
		return Decision{Action: ActionEscalate, Reason: fmt.Sprintf("tool %q is not in the allow list", req.ToolName)}
	}
	if req.ToolName != "Bash" {
		return Decision{Action: ActionApprove, Reason: fmt.Sprintf("tool %q is allowed", req.ToolName)}
	}
	return e.decideBash(req, config)
}

func extractCommand(req PermissionRequest) (string, bool) {
	if req.ToolInput == nil {
		return "", false
	}
	raw, ok := req.ToolInput["command"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func (e *Engine) decideBash(req PermissionRequest, config *AutoApproveConfig) Decision {
	cmd, ok := extractCommand(req)
	if !ok {
		return Decision{Action: ActionEscalate, Reason: "no command string in tool input"}
	}

	normalized := NormalizeCommand(cmd)
	hasMeta := ContainsShellMetacharacter(normalized)

	// With shell metacharacters present, the command is a compound/piped
	// expression a single pattern cannot safely reason about piecewise, so
	// both deny and allow patterns require a whole-string match — the same
	// restriction property 4 places on allow alone.
	for _, p := range config.CompiledBashDeny {
		matched := p.Matches(normalized)
		if hasMeta {
			matched = p.MatchesWhole(normalized)
		}
		if matched {
			return Decision{Action: ActionDeny, Reason: fmt.Sprintf("command matches deny pattern %q", p.Source)}
		}
	}

	if len(config.CompiledBashAllow) == 0 && len(config.CompiledBashDeny) == 0 {
		return Decision{Action: ActionApprove, Reason: "bash allowed at tool level, no patterns configured"}
	}

	if hasMeta {
		for _, p := range config.CompiledBashAllow {
			if p.MatchesWhole(normalized) {
				return Decision{Action: ActionApprove, Reason: fmt.Sprintf("command matches allow pattern %q in full", p.Source)}
			}
		}
		return Decision{Action: ActionEscalate, Reason: "command contains shell metacharacters with no whole-string allow match"}
	}

	for _, p := range config.CompiledBashAllow {
		if p.Matches(normalized) {
			return Decision{Action: ActionApprove, Reason: fmt.Sprintf("command matches allow pattern %q", p.Source)}
		}
	}

	return Decision{Action: ActionEscalate, Reason: "command matches no allow pattern"}
}
