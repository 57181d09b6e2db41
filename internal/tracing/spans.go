package tracing

// Span attribute keys shared across the harness's tracing instrumentation.
const (
	// Policy-engine attributes.
	AttrToolName    = "policy.tool_name"
	AttrDecision    = "policy.decision"
	AttrDenyReason  = "policy.deny_reason"
	AttrPaneID      = "pane.id"
	AttrRepoPath    = "policy.repo_path"
	AttrWishID      = "wish.id"
	AttrToolCallID  = "policy.tool_call_id"

	// Resolver / registry attributes.
	AttrWorkerID     = "worker.id"
	AttrResolvedVia  = "resolver.method"
	AttrSessionName  = "session.name"
	AttrWindowID     = "window.id"

	// Mailbox attributes.
	AttrMailboxFrom = "mailbox.from"
	AttrMailboxTo   = "mailbox.to"
	AttrMessageID   = "mailbox.message_id"

	// Batch attributes.
	AttrBatchID = "batch.id"

	// Aggregator attributes.
	AttrEventType = "event.type"

	// Error attributes.
	AttrErrorMessage = "error.message"
)

// Span name prefixes for consistent naming across components.
const (
	SpanPrefixPolicy   = "policy."
	SpanPrefixResolver = "resolver."
	SpanPrefixMailbox  = "mailbox."
	SpanPrefixBatch    = "batch."
	SpanPrefixAggr     = "aggregator."
)

// Event names for span events.
const (
	EventDecisionMade    = "policy.decision_made"
	EventAuditAppended   = "policy.audit_appended"
	EventDeliveryFailed  = "policy.delivery_failed"
	EventPaneDead        = "resolver.pane_dead"
	EventMessageEnqueued = "mailbox.message_enqueued"
	EventBatchComplete   = "batch.complete"
)
