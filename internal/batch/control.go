package batch

// State returns the current run state.
func (q *Queue[T, R]) State() RunState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Pause stops new dispatch. Items already processing are unaffected and run
// to their own completion. A no-op unless the queue is running.
func (q *Queue[T, R]) Pause() {
	q.mu.Lock()
	if q.state == StateRunning {
		q.state = StatePaused
	}
	q.mu.Unlock()
	q.poke()
}

// Resume continues dispatch with the remaining pending items in their
// original order. Completed work is never re-executed. A no-op unless the
// queue is paused.
func (q *Queue[T, R]) Resume() {
	q.mu.Lock()
	if q.state == StatePaused {
		q.state = StateRunning
	}
	q.mu.Unlock()
	q.poke()
}

// Cancel stops the run: every still-pending item is marked cancelled before
// anything else is dispatched, and the cancellation signal is raised for
// in-flight processors. Idempotent; a no-op once the run has drained.
func (q *Queue[T, R]) Cancel() {
	q.mu.Lock()
	if q.state == StateCancelled || q.state == StateDrained {
		q.mu.Unlock()
		return
	}
	q.state = StateCancelled
	cancel := q.cancelRun
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.poke()
}

// poke nudges the dispatch loop without blocking; a single buffered slot is
// enough since the loop re-reads state on every wake.
func (q *Queue[T, R]) poke() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
