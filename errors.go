package audfeed

import (
	"errors"

	"github.com/audlabs/audfeed/internal/store"
)

// ErrBackPressure is returned when the client's internal shard queue is full.
var ErrBackPressure = errors.New("back-pressure (queue full)")

// ErrInflight is returned when a like or vote for the item is already in
// flight; the repeat click is dropped, not queued.
var ErrInflight = errors.New("mutation already in flight for item")

// ErrClosed is returned from operations on a closed client.
var ErrClosed = errors.New("client is closed")

// ErrNotOwner is returned when Delete is called on an item the signed-in
// account does not own.
var ErrNotOwner = errors.New("item is not owned by this account")

// IsBackPressure reports whether err is a back-pressure error.
func IsBackPressure(err error) bool { return errors.Is(err, ErrBackPressure) }

// Re-export the shared engine error so callers compare against one symbol.
var ErrLabelLocked = store.ErrLabelLocked
