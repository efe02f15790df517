package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/hyperengineering/grmsync/internal/clock"
)

// MaxCheckpointWait caps how long the Checkpointer waits for the clock to
// pass the last issued checkpoint. A clock further behind is a clock fault.
const MaxCheckpointWait = 2 * time.Second

// Checkpointer issues millisecond checkpoints from the server clock and
// tracks in-flight writes so that no checkpoint passes a write a reader
// could not yet see. It must read the same clock the store stamps rows
// with. It is safe for concurrent use.
//
// Invariants, all under mu:
//   - every in-flight write started after last;
//   - no checkpoint is issued at or above the start of a write that was in
//     flight at any time during the issuing read window.
type Checkpointer struct {
	clock clock.Clock
	wait  func(ctx context.Context, d time.Duration) error

	mu     gosync.Mutex
	last   int64
	seq    uint64
	writes map[uint64]int64 // write id -> start ms
	reads  map[uint64]int64 // read id -> earliest overlapping write start, 0 if none
}

// NewCheckpointer creates a Checkpointer reading c.
func NewCheckpointer(c clock.Clock) *Checkpointer {
	return &Checkpointer{
		clock:  c,
		wait:   sleep,
		writes: make(map[uint64]int64),
		reads:  make(map[uint64]int64),
	}
}

// BeginWrite registers a write about to open its transaction. It returns
// once the clock is past every issued checkpoint, so rows the write stamps
// sort after them. done must be called when the transaction has finished.
func (c *Checkpointer) BeginWrite(ctx context.Context) (done func(), err error) {
	var waited time.Duration
	for {
		c.mu.Lock()
		now := c.clock.Now().UnixMilli()
		if now <= 0 {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: clock reads %d", ErrClock, now)
		}
		if now <= c.last {
			behind := time.Duration(c.last-now+1) * time.Millisecond
			last := c.last
			c.mu.Unlock()
			if waited+behind > MaxCheckpointWait {
				return nil, fmt.Errorf("%w: clock %d behind checkpoint %d", ErrClock, now, last)
			}
			if err := c.wait(ctx, behind); err != nil {
				return nil, err
			}
			waited += behind
			continue
		}

		c.seq++
		id := c.seq
		c.writes[id] = now
		for r, earliest := range c.reads {
			if earliest == 0 || now < earliest {
				c.reads[r] = now
			}
		}
		c.mu.Unlock()

		return func() {
			c.mu.Lock()
			delete(c.writes, id)
			c.mu.Unlock()
		}, nil
	}
}

// BeginRead opens a read window. Call it before the first query; EndRead
// returns the checkpoint for what the window read.
func (c *Checkpointer) BeginRead() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	var earliest int64
	for _, start := range c.writes {
		if earliest == 0 || start < earliest {
			earliest = start
		}
	}
	c.reads[c.seq] = earliest
	return c.seq
}

// EndRead closes the window and returns its checkpoint.
func (c *Checkpointer) EndRead(ctx context.Context, id uint64) (int64, error) {
	defer c.CancelRead(id)
	return c.issue(ctx)
}

// CancelRead closes a window without issuing a checkpoint. Closing a
// closed window is a no-op.
func (c *Checkpointer) CancelRead(id uint64) {
	c.mu.Lock()
	delete(c.reads, id)
	c.mu.Unlock()
}

// Next issues a checkpoint outside any read window.
func (c *Checkpointer) Next(ctx context.Context) (int64, error) {
	return c.issue(ctx)
}

// issue returns a checkpoint no lower than any issued before. Without
// overlapping writes it is the current clock millisecond, strictly above
// the previous checkpoint; otherwise it stays below the earliest
// overlapping write.
func (c *Checkpointer) issue(ctx context.Context) (int64, error) {
	var waited time.Duration
	for {
		c.mu.Lock()
		now := c.clock.Now().UnixMilli()
		if now <= 0 {
			c.mu.Unlock()
			return 0, fmt.Errorf("%w: clock reads %d", ErrClock, now)
		}

		if now <= c.last {
			ahead := time.Duration(c.last-now+1) * time.Millisecond
			last := c.last
			c.mu.Unlock()
			if waited+ahead > MaxCheckpointWait {
				return 0, fmt.Errorf("%w: clock %d behind checkpoint %d", ErrClock, now, last)
			}
			if err := c.wait(ctx, ahead); err != nil {
				return 0, err
			}
			waited += ahead
			continue
		}

		next := now
		if floor := c.floorLocked(); floor > 0 && next >= floor {
			next = floor - 1
		}
		if next > c.last {
			c.last = next
		}
		c.mu.Unlock()
		return next, nil
	}
}

// floorLocked returns the earliest write start any checkpoint must stay
// below, or 0.
func (c *Checkpointer) floorLocked() int64 {
	var floor int64
	lower := func(v int64) {
		if v > 0 && (floor == 0 || v < floor) {
			floor = v
		}
	}
	for _, start := range c.writes {
		lower(start)
	}
	for _, earliest := range c.reads {
		lower(earliest)
	}
	return floor
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
