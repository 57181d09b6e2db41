// Package policy implements the permission-decision engine (C1): layered
// auto-approve configuration, command normalization, ReDoS-bounded pattern
// matching, and the approve/deny/escalate decision algorithm with its
// audit and delivery contracts.
package policy

import "time"

// ToolName identifies an agent tool call, e.g. "Bash", "Read", "Write".
type ToolName string

// Action is the verdict produced by the engine for a PermissionRequest.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionDeny     Action = "deny"
	ActionEscalate Action = "escalate"
)

// PermissionRequest is derived from a tool_call or permission_request
// NormalizedEvent. It is immutable after creation.
type PermissionRequest struct {
	ID         string
	ToolName   ToolName
	ToolInput  map[string]any
	PaneID     string // optional
	WishID     string // optional
	SessionID  string
	Cwd        string
	Timestamp  time.Time
	ToolCallID string // optional
}

// Decision is the engine's immutable verdict for a PermissionRequest.
type Decision struct {
	Action Action
	Reason string
}

// AuditEntry is one append-only JSONL record describing an evaluated
// request.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	PaneID    string    `json:"paneId,omitempty"`
	ToolName  ToolName  `json:"toolName"`
	WishID    string    `json:"wishId,omitempty"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason"`
	Category  string    `json:"category,omitempty"`
}

// Stats are the running counters returned by Engine.Stats, reset on every
// Start.
type Stats struct {
	Approved  int `json:"approved"`
	Denied    int `json:"denied"`
	Escalated int `json:"escalated"`
	Total     int `json:"total"`
}

// Defaults is a single layer's allow/deny/bash-pattern block.
type Defaults struct {
	Allow             map[ToolName]bool `yaml:"-" json:"-"`
	Deny              map[ToolName]bool `yaml:"-" json:"-"`
	AllowList         []ToolName        `yaml:"allow" json:"allow"`
	DenyList          []ToolName        `yaml:"deny" json:"deny"`
	BashAllowPatterns []string          `yaml:"bash_allow_patterns" json:"bash_allow_patterns"`
	BashDenyPatterns  []string          `yaml:"bash_deny_patterns" json:"bash_deny_patterns"`
}

// RepoOverride is a repo-path-keyed override block. Inherit selects union
// semantics with the accumulator instead of the default override semantics
// (spec §4.1). Its allow/deny/bash-pattern fields sit flat alongside
// inherit, not nested under a defaults key — matching the documented
// repos.<path> shape.
type RepoOverride struct {
	Inherit  string `yaml:"inherit" json:"inherit"`
	Defaults `yaml:",inline" json:",inline"`
}

// FileConfig is the on-disk shape of an auto-approve.yaml layer. The global
// layer populates Repos; the repo-local layer populates Inherit directly
// alongside its own Defaults (the same shape as a RepoOverride).
type FileConfig struct {
	Defaults Defaults                `yaml:"defaults" json:"defaults"`
	Repos    map[string]RepoOverride `yaml:"repos" json:"repos"`
	Inherit  string                  `yaml:"inherit" json:"inherit"`
}

// AutoApproveConfig is the compiled in-memory policy produced by layering
// global, repo, and wish-level configuration.
type AutoApproveConfig struct {
	Defaults            Defaults
	CompiledBashAllow   []CompiledPattern
	CompiledBashDeny    []CompiledPattern
}
