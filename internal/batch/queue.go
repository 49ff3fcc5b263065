package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Queue drives a single batch of items through a processor. Construct with
// New, populate with Add, then call Process exactly once; a fresh run needs
// a fresh queue.
type Queue[T, R any] struct {
	cfg   Config[T, R]
	store *store[T, R]
	gate  *gate

	mu        sync.Mutex
	state     RunState
	started   bool
	runCtx    context.Context
	cancelRun context.CancelFunc
	wake      chan struct{}

	// settled is touched only on the dispatch goroutine.
	settled int
}

// outcome carries one processor result back to the dispatch goroutine.
type outcome[R any] struct {
	id     string
	result R
	err    error
}

// New validates the configuration and returns an idle queue.
func New[T, R any](cfg Config[T, R]) (*Queue[T, R], error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, cfg.Concurrency)
	}
	return &Queue[T, R]{
		cfg:   cfg,
		store: newStore[T, R](),
		gate:  newGate(cfg.Concurrency),
		state: StateIdle,
		wake:  make(chan struct{}, 1),
	}, nil
}

// Add appends a pending item. The id must be unique within the queue and
// items can only be added before Process is called.
func (q *Queue[T, R]) Add(id, name string, data T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return ErrAlreadyStarted
	}
	return q.store.add(&Item[T, R]{
		ID:        id,
		Name:      name,
		Data:      data,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	})
}

// Len returns the number of items added so far.
func (q *Queue[T, R]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.len()
}

// Process dispatches every item FIFO through the concurrency gate and
// returns once all items are terminal. Item failures never surface as an
// error here; the returned summary carries them. Cancelling ctx behaves
// like Cancel: pending items are marked cancelled and in-flight items are
// signalled, but Process still waits for them to settle so the summary
// conserves every item.
func (q *Queue[T, R]) Process(ctx context.Context, proc Processor[T, R]) (*Summary[T, R], error) {
	if proc == nil {
		return nil, ErrNilProcessor
	}
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil, ErrAlreadyProcessed
	}
	q.started = true
	if q.state == StateIdle {
		q.state = StateRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.runCtx = runCtx
	q.cancelRun = cancel
	q.mu.Unlock()
	defer cancel()

	q.run(runCtx, proc)
	return q.summary(), nil
}

// run is the dispatch loop. It is the sole mutator of item state once the
// queue has started; workers only execute the processor and report back.
func (q *Queue[T, R]) run(ctx context.Context, proc Processor[T, R]) {
	total := q.store.len()
	outcomes := make(chan outcome[R], total)
	inflight := 0

	for {
		if ctx.Err() != nil {
			q.Cancel()
		}
		q.drainSettled(outcomes, &inflight)

		if q.State() == StateCancelled {
			q.cancelPending()
			q.awaitInflight(outcomes, inflight)
			return
		}

		item := q.store.nextPending()
		if item == nil && inflight == 0 {
			q.setDrained()
			return
		}
		if item == nil || q.State() == StatePaused {
			q.waitEvent(ctx, outcomes, &inflight)
			continue
		}

		if err := q.gate.acquire(ctx); err != nil {
			continue
		}
		// Outcomes may have settled while waiting for a slot; a fail-fast
		// error among them can cancel the item we were about to start.
		q.drainSettled(outcomes, &inflight)
		if q.State() != StateRunning || item.Status != StatusPending {
			q.gate.release()
			continue
		}

		q.store.markProcessing(item.ID)
		q.notifyStart(item)
		inflight++
		go func(it *Item[T, R]) {
			defer q.gate.release()
			result, err := q.invoke(ctx, proc, it.Data)
			outcomes <- outcome[R]{id: it.ID, result: result, err: err}
		}(item)
	}
}

// invoke runs the processor, converting a panic into a per-item error so a
// misbehaving processor cannot take down the whole run.
func (q *Queue[T, R]) invoke(ctx context.Context, proc Processor[T, R], data T) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return proc(ctx, data)
}

// settle records one processor outcome. A context.Canceled error under a
// requested cancel counts as cancelled; any other error marks the item
// failed and, under fail-fast, cancels everything still pending.
func (q *Queue[T, R]) settle(out outcome[R]) {
	status := StatusCompleted
	message := ""
	switch {
	case out.err == nil:
	case errors.Is(out.err, context.Canceled) && q.cancelRequested():
		status = StatusCancelled
		message = out.err.Error()
	default:
		status = StatusError
		message = out.err.Error()
	}
	item := q.store.markTerminal(out.id, status, out.result, message)
	q.settled++
	q.notifyComplete(item)
	q.notifyProgress()
	if status == StatusError && !q.cfg.ContinueOnError {
		q.cancelPending()
	}
}

// cancelRequested reports whether cancellation has been asked for, either
// through Cancel or by the caller's context ending.
func (q *Queue[T, R]) cancelRequested() bool {
	q.mu.Lock()
	cancelled := q.state == StateCancelled
	runCtx := q.runCtx
	q.mu.Unlock()
	return cancelled || (runCtx != nil && runCtx.Err() != nil)
}

// cancelPending marks every still-pending item cancelled, firing the same
// observers a processed item would get. Safe to call repeatedly.
func (q *Queue[T, R]) cancelPending() {
	for _, item := range q.store.items {
		if item.Status != StatusPending {
			continue
		}
		q.store.markCancelledPending(item)
		q.settled++
		q.notifyComplete(item)
		q.notifyProgress()
	}
}

func (q *Queue[T, R]) drainSettled(outcomes <-chan outcome[R], inflight *int) {
	for {
		select {
		case out := <-outcomes:
			q.settle(out)
			*inflight--
		default:
			return
		}
	}
}

// waitEvent blocks until something changes: a processor settles, a control
// call pokes the queue, or the run context ends.
func (q *Queue[T, R]) waitEvent(ctx context.Context, outcomes <-chan outcome[R], inflight *int) {
	select {
	case <-ctx.Done():
	case out := <-outcomes:
		q.settle(out)
		*inflight--
	case <-q.wake:
	}
}

// awaitInflight drains the remaining in-flight work after cancellation.
// Cancellation is cooperative: a processor that ignores its context runs to
// completion and whatever it returns is recorded.
func (q *Queue[T, R]) awaitInflight(outcomes <-chan outcome[R], inflight int) {
	for inflight > 0 {
		out := <-outcomes
		q.settle(out)
		inflight--
	}
}

func (q *Queue[T, R]) setDrained() {
	q.mu.Lock()
	if q.state == StateRunning || q.state == StatePaused {
		q.state = StateDrained
	}
	q.mu.Unlock()
}

func (q *Queue[T, R]) summary() *Summary[T, R] {
	s := &Summary[T, R]{Items: make([]*Item[T, R], 0, q.store.len())}
	for _, item := range q.store.items {
		snap := *item
		s.Items = append(s.Items, &snap)
		switch item.Status {
		case StatusCompleted:
			s.Completed++
		case StatusError:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

func (q *Queue[T, R]) notifyStart(item *Item[T, R]) {
	if q.cfg.OnItemStart == nil {
		return
	}
	snap := *item
	q.cfg.OnItemStart(&snap)
}

func (q *Queue[T, R]) notifyComplete(item *Item[T, R]) {
	if q.cfg.OnItemComplete == nil {
		return
	}
	snap := *item
	q.cfg.OnItemComplete(&snap)
}

func (q *Queue[T, R]) notifyProgress() {
	if q.cfg.OnProgress == nil {
		return
	}
	q.cfg.OnProgress(q.settled, q.store.len())
}
