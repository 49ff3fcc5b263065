package batch

import (
	"context"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusError,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a status is final for an item.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// RunState represents the lifecycle of a queue run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StatePaused    RunState = "paused"
	StateCancelled RunState = "cancelled"
	StateDrained   RunState = "drained"
)

// Item is one unit of work. Data is opaque to the queue and handed verbatim
// to the processor; Result is set only on completion, ErrorMessage only on
// error.
type Item[T, R any] struct {
	ID           string
	Name         string
	Data         T
	Status       Status
	Result       R
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Duration returns the wall-clock time the item spent processing, or zero
// when it never started or has not finished.
func (i *Item[T, R]) Duration() time.Duration {
	if i.StartedAt == nil || i.FinishedAt == nil {
		return 0
	}
	return i.FinishedAt.Sub(*i.StartedAt)
}

// Summary is the terminal accounting for a run. Items holds a snapshot of
// every item in insertion order; Completed+Failed+Cancelled always equals
// len(Items).
type Summary[T, R any] struct {
	Completed int
	Failed    int
	Cancelled int
	Items     []*Item[T, R]
}

// Processor performs the actual transformation for one item. The context is
// the cancellation signal for the run; implementations should observe it and
// return promptly when it is cancelled, though the queue tolerates ones that
// do not.
type Processor[T, R any] func(ctx context.Context, data T) (R, error)

// Config carries the construction-time policy for a Queue. Observer
// callbacks are optional; they are invoked from the dispatch goroutine and
// receive item snapshots, so retaining them past the call is safe.
type Config[T, R any] struct {
	// Concurrency bounds how many items may be processing simultaneously.
	// Must be at least 1.
	Concurrency int

	// ContinueOnError keeps dispatching after an item fails. When false,
	// the first error cancels every item still pending; in-flight items
	// run to their natural completion.
	ContinueOnError bool

	// OnItemStart fires once per item as it transitions to processing.
	OnItemStart func(item *Item[T, R])

	// OnItemComplete fires once per item as it reaches a terminal state.
	OnItemComplete func(item *Item[T, R])

	// OnProgress fires after each terminal transition with the number of
	// items settled so far and the total; done is non-decreasing and
	// reaches total exactly when the run finishes.
	OnProgress func(done, total int)
}
