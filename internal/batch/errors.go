package batch

import "errors"

var (
	// ErrInvalidConcurrency reports a concurrency bound below 1.
	ErrInvalidConcurrency = errors.New("batch: concurrency must be at least 1")

	// ErrDuplicateID reports an Add with an id already present in the queue.
	ErrDuplicateID = errors.New("batch: duplicate item id")

	// ErrAlreadyStarted reports an Add after Process has begun.
	ErrAlreadyStarted = errors.New("batch: items cannot be added after processing starts")

	// ErrAlreadyProcessed reports a second Process call on the same queue.
	ErrAlreadyProcessed = errors.New("batch: queue has already been processed")

	// ErrNilProcessor reports a Process call without a processor.
	ErrNilProcessor = errors.New("batch: processor must not be nil")
)
