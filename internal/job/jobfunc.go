package job

import (
	"context"
	"errors"
	"fmt"
)

// ErrNilJobFunc is returned when a JobFunc is nil.
var ErrNilJobFunc = errors.New("nil JobFunc")

// jobFunc lets us pass plain closures to the shard executor.
type jobFunc func(context.Context) error

func (f jobFunc) Run(ctx context.Context) error {
	if f == nil {
		return fmt.Errorf("jobfunc: %w", ErrNilJobFunc)
	}
	return f(ctx)
}

// New wraps a closure as a Job for the shard executor. Mutation jobs for the
// same item id must be built through this so the executor can serialize them.
func New(fn func(context.Context) error) jobFunc {
	return jobFunc(fn)
}

// settledJob pairs a run closure with a settle hook the executor fires once
// the job has run for the last time.
type settledJob struct {
	run    jobFunc
	settle func(error)
}

func (s *settledJob) Run(ctx context.Context) error { return s.run.Run(ctx) }

func (s *settledJob) Settle(err error) {
	if s.settle != nil {
		s.settle(err)
	}
}

// WithSettle wraps a closure as a Job whose settle hook receives the final
// outcome: nil after a successful run, the last error once the executor gives
// up. The hook runs exactly once, on the shard's worker, before the next
// queued job for the same key.
func WithSettle(fn func(context.Context) error, settle func(error)) *settledJob {
	return &settledJob{run: jobFunc(fn), settle: settle}
}
