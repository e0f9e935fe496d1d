package shardqueue

import "context"

// Job is a unit of work executed by a ShardExecutor.
// Run must be safe for concurrent invocations when the same Job instance is reused.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc is a helper to adapt a function to a Job.
type JobFunc func(ctx context.Context) error

// Run implements Job for JobFunc.
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Settler is an optional extension a Job may implement. The executor calls
// Settle exactly once, on the worker goroutine, after the Job will not run
// again: with nil after a successful run, otherwise with the final error
// (irrecoverable failure, retries exhausted, or cancellation). Within a
// shard, Settle runs before the next queued Job starts.
type Settler interface {
	Settle(err error)
}
