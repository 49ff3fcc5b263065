// Package tasks provides the built-in per-file processors the CLI feeds to
// the batch queue.
//
// Each task turns one input file into an output artifact and observes its
// context between chunks, so cancelling a run interrupts tasks mid-file.
// The queue never looks inside these; it sees an opaque processor.
package tasks
