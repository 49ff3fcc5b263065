package batch

import (
	"fmt"
	"time"
)

// store owns the ordered item collection and its status transitions. It is
// not safe for concurrent use; the Queue serializes access on the dispatch
// goroutine (guarded by the queue mutex before the run starts).
type store[T, R any] struct {
	items []*Item[T, R]
	index map[string]*Item[T, R]
}

func newStore[T, R any]() *store[T, R] {
	return &store[T, R]{index: make(map[string]*Item[T, R])}
}

func (s *store[T, R]) add(item *Item[T, R]) error {
	if _, ok := s.index[item.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, item.ID)
	}
	s.items = append(s.items, item)
	s.index[item.ID] = item
	return nil
}

func (s *store[T, R]) len() int {
	return len(s.items)
}

// nextPending returns the first pending item in insertion order without
// side effects, or nil when none remain.
func (s *store[T, R]) nextPending() *Item[T, R] {
	for _, item := range s.items {
		if item.Status == StatusPending {
			return item
		}
	}
	return nil
}

// markProcessing transitions an item from pending to processing. Any other
// source state is a programming error in the dispatch loop.
func (s *store[T, R]) markProcessing(id string) *Item[T, R] {
	item := s.mustGet(id)
	if item.Status != StatusPending {
		panic(fmt.Sprintf("batch: markProcessing %q from %s", id, item.Status))
	}
	now := time.Now()
	item.Status = StatusProcessing
	item.StartedAt = &now
	return item
}

// markTerminal transitions an item from processing to a terminal state.
func (s *store[T, R]) markTerminal(id string, status Status, result R, errMsg string) *Item[T, R] {
	if !status.Terminal() {
		panic(fmt.Sprintf("batch: markTerminal %q with non-terminal status %s", id, status))
	}
	item := s.mustGet(id)
	if item.Status != StatusProcessing {
		panic(fmt.Sprintf("batch: markTerminal %q from %s", id, item.Status))
	}
	now := time.Now()
	item.Status = status
	item.FinishedAt = &now
	switch status {
	case StatusCompleted:
		item.Result = result
	case StatusError, StatusCancelled:
		item.ErrorMessage = errMsg
	}
	return item
}

// markCancelledPending transitions a still-pending item straight to
// cancelled, for work the dispatcher chose not to start.
func (s *store[T, R]) markCancelledPending(item *Item[T, R]) {
	if item.Status != StatusPending {
		panic(fmt.Sprintf("batch: markCancelledPending %q from %s", item.ID, item.Status))
	}
	now := time.Now()
	item.Status = StatusCancelled
	item.FinishedAt = &now
}

func (s *store[T, R]) mustGet(id string) *Item[T, R] {
	item, ok := s.index[id]
	if !ok {
		panic(fmt.Sprintf("batch: unknown item id %q", id))
	}
	return item
}
