package bounty

import (
	"context"
	"sync"
	"time"
)

// Clock is the ledger's shared time source, in unix seconds.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

func (SystemClock) Now(context.Context) (int64, error) { return time.Now().Unix(), nil }

// MonotonicClock never reports a time earlier than one it already reported.
type MonotonicClock struct {
	inner Clock
	mu    sync.Mutex
	last  int64
}

func NewMonotonicClock(inner Clock) *MonotonicClock {
	return &MonotonicClock{inner: inner}
}

func (c *MonotonicClock) Now(ctx context.Context) (int64, error) {
	now, err := c.inner.Now(ctx)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if now < c.last {
		return c.last, nil
	}
	c.last = now
	return now, nil
}

// ManualClock is moved explicitly; used by tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

func NewManualClock(start int64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *ManualClock) Advance(seconds int64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}
