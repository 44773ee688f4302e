// Package task implements the in-process background task queue: the Task
// lifecycle, FIFO admission under a concurrency bound, cancellation, and the
// JobRunner contract that kind-specific adapters implement.
package task
