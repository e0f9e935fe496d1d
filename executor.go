package audfeed

import (
	"context"

	"github.com/audlabs/audfeed/internal/shardqueue"
)

// executor abstracts the internal async job runner used by mutation APIs.
type executor interface {
	Submit(context.Context, string, shardqueue.Job) error
	Stop()
}

// Note: all clients include an executor by default; mutations require it.
