package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/resilience"
)

// Slot guards the shared storage key and job name. Acquire blocks until
// the slot is held and returns an idempotent release.
type Slot interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalSlot is an in-process Slot: a bulkhead one wide.
type LocalSlot struct {
	name string
	bh   *resilience.Bulkhead
}

// NewLocalSlot creates a slot that queues waiters for up to maxWait. Zero
// waits until the caller's context is done; a negative maxWait rejects at
// once when the slot is taken.
func NewLocalSlot(name string, maxWait time.Duration) *LocalSlot {
	return &LocalSlot{
		name: name,
		bh: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          name,
			MaxConcurrent: 1,
			MaxWait:       maxWait,
		}),
	}
}

// Acquire takes the slot. A full or timed-out wait is SLOT_BUSY; a done
// context returns the context error.
func (s *LocalSlot) Acquire(ctx context.Context) (func(), error) {
	release, err := s.bh.Acquire(ctx)
	if err != nil {
		if stderrors.Is(err, resilience.ErrBulkheadFull) || stderrors.Is(err, resilience.ErrBulkheadTimeout) {
			return nil, errors.SlotBusy(s.name).WithCause(err)
		}
		return nil, err
	}
	return release, nil
}

// Held reports whether a run currently holds the slot.
func (s *LocalSlot) Held() bool { return s.bh.InUse() > 0 }
