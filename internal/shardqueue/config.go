package shardqueue

import "time"

// Config tunes a ShardExecutor. The zero value is usable; NewShardExecutor
// fills in defaults for unset fields.
type Config struct {
	// Shards is the number of worker goroutines / queues.
	Shards int

	// QueueSize is the per-shard buffered queue capacity.
	QueueSize int

	// EnqueueTimeout bounds how long Submit waits for queue space before
	// reporting back-pressure.
	EnqueueTimeout time.Duration

	// MaxAttempts caps how many times a failing job is run before its error
	// is handed to ErrorHandler.
	MaxAttempts int

	// BaseBackoff is the initial retry interval; it doubles up to MaxInterval.
	BaseBackoff time.Duration
	MaxInterval time.Duration

	// ErrorHandler receives the final error of a job that exhausted its
	// retries or failed irrecoverably. May be nil.
	ErrorHandler func(error)
}
