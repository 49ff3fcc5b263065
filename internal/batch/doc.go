// Package batch runs a caller-supplied processor over an ordered collection
// of work items with bounded parallelism, cooperative cancellation, and
// pause/resume control.
//
// A Queue is single-use: items are added while idle, Process dispatches them
// FIFO through a concurrency gate, and the call returns a Summary once every
// item has reached a terminal state. Failures are isolated per item and
// never escape Process; callers inspect the summary to detect partial
// failure. Cancellation is advisory — the queue stops starting new work and
// signals in-flight processors through their context, but a processor that
// ignores the signal runs to its own completion and its outcome is recorded
// as-is.
//
// All item transitions and observer callbacks happen on the dispatch
// goroutine, so observers see a consistent, ordered view without locking.
package batch
