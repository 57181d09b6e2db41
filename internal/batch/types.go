// Package batch implements the batch / lifecycle manager (C4): grouping a
// set of wishes into one monotonically-identified unit of work, tracking
// each wish's per-worker sub-state, and folding those sub-states into a
// completion summary.
package batch

import "time"

// Status is the lifecycle status of a Batch.
type Status string

const (
	StatusActive    Status = "active"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// WorkerSubState is the per-wish-id status tracked within a batch.
type WorkerSubState string

const (
	SubStateQueued   WorkerSubState = "queued"
	SubStateSpawning WorkerSubState = "spawning"
	SubStateRunning  WorkerSubState = "running"
	SubStateWaiting  WorkerSubState = "waiting"
	SubStateComplete WorkerSubState = "complete"
	SubStateFailed   WorkerSubState = "failed"
	SubStateCancelled WorkerSubState = "cancelled"
)

// terminal reports whether s is one of the states that never transitions
// further ({complete, failed, cancelled}, per spec §4.4).
func (s WorkerSubState) terminal() bool {
	switch s {
	case SubStateComplete, SubStateFailed, SubStateCancelled:
		return true
	default:
		return false
	}
}

// Options configures how a batch spawns and approves its workers.
type Options struct {
	Skill         string `json:"skill,omitempty"`
	AutoApprove   bool   `json:"autoApprove,omitempty"`
	MaxConcurrent int    `json:"maxConcurrent,omitempty"`
}

// Batch is a set of wish ids spawned and tracked together.
type Batch struct {
	ID        string                    `json:"id"`
	CreatedAt time.Time                 `json:"createdAt"`
	Status    Status                    `json:"status"`
	WishIDs   []string                  `json:"wishIds"`
	States    map[string]WorkerSubState `json:"states"`
	Options   Options                   `json:"options"`
}

// Summary folds per-wish sub-states into aggregate counts; spawning is
// counted under running (spec §4.4).
type Summary struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Complete  int `json:"complete"`
	Failed    int `json:"failed"`
	Queued    int `json:"queued"`
	Waiting   int `json:"waiting"`
	Cancelled int `json:"cancelled"`
}

// CompletionResult is the result of checking whether a batch has finished.
type CompletionResult struct {
	Complete bool    `json:"complete"`
	Summary  Summary `json:"summary"`
}
