package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The following pin the literal end-to-end scenarios (S1-S4, S8) to their
// exact expected outputs, as distinct from the "for all" property tests
// above.

func TestScenarioS1ApproveDeliversOnceAndAudits(t *testing.T) {
	config := compile(Defaults{AllowList: []ToolName{"Read", "Glob", "Grep"}})

	var delivered []string
	deliver := func(_ context.Context, paneID string) error {
		delivered = append(delivered, paneID)
		return nil
	}
	e, auditPath := newTestEngine(t, config, deliver)

	d, err := e.Evaluate(context.Background(), PermissionRequest{ToolName: "Read", PaneID: "%42"})
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, d.Action)

	entries := readAuditEntries(t, auditPath)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionApprove, entries[0].Action)
	assert.Equal(t, ToolName("Read"), entries[0].ToolName)
	assert.Equal(t, "%42", entries[0].PaneID)

	assert.Equal(t, []string{"%42"}, delivered)
}

func TestScenarioS2DenyNeverDelivers(t *testing.T) {
	config := compile(Defaults{AllowList: []ToolName{"Read"}, DenyList: []ToolName{"Write"}})

	var delivered []string
	deliver := func(_ context.Context, paneID string) error {
		delivered = append(delivered, paneID)
		return nil
	}
	e, auditPath := newTestEngine(t, config, deliver)

	d, err := e.Evaluate(context.Background(), PermissionRequest{ToolName: "Write", PaneID: "%42"})
	require.NoError(t, err)
	assert.Equal(t, ActionDeny, d.Action)
	assert.Empty(t, delivered)

	entries := readAuditEntries(t, auditPath)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionDeny, entries[0].Action)
}

func TestScenarioS3BashMetacharactersEscalateDespiteAllowPattern(t *testing.T) {
	config := compile(Defaults{
		AllowList:         []ToolName{"Bash"},
		BashAllowPatterns: []string{"bun test"},
		BashDenyPatterns:  []string{"rm -rf"},
	})
	e, _ := newTestEngine(t, config, noopDeliver)

	d, err := e.Evaluate(context.Background(), PermissionRequest{
		ToolName: "Bash", ToolInput: map[string]any{"command": "bun test && rm -rf /"},
	})
	require.NoError(t, err)
	assert.Equal(t, ActionEscalate, d.Action)
}

func TestScenarioS4DenyPatternMatchesAfterNormalization(t *testing.T) {
	config := compile(Defaults{
		AllowList:         []ToolName{"Bash"},
		BashAllowPatterns: []string{"bun test"},
		BashDenyPatterns:  []string{"rm -rf"},
	})
	e, _ := newTestEngine(t, config, noopDeliver)

	d, err := e.Evaluate(context.Background(), PermissionRequest{
		ToolName: "Bash", ToolInput: map[string]any{"command": "/usr/bin/rm  -rf /var"},
	})
	require.NoError(t, err)
	assert.Equal(t, ActionDeny, d.Action)
}

func TestScenarioS8AuditFailureEscalatesWithoutDelivery(t *testing.T) {
	config := compile(Defaults{AllowList: []ToolName{"Read"}})

	delivered := false
	deliver := func(context.Context, string) error {
		delivered = true
		return nil
	}

	dir := t.TempDir()
	audit, err := NewAuditLog(dir + "/audit.jsonl")
	require.NoError(t, err)
	require.NoError(t, audit.Close()) // simulates an unwritable audit sink: further Append calls fail

	e := NewEngine(config, audit, deliver)
	e.Start()

	d, err := e.Evaluate(context.Background(), PermissionRequest{ToolName: "Read"})
	require.NoError(t, err)
	assert.Equal(t, ActionEscalate, d.Action)
	assert.Contains(t, d.Reason, "audit")
	assert.False(t, delivered)
}
