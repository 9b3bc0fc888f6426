package syncq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestOutbox(cfg Config) (*Outbox, *clock) {
	c := &clock{t: time.Date(2025, 12, 26, 9, 0, 0, 0, time.UTC)}
	o := NewOutbox(cfg)
	o.now = c.now
	return o, c
}

// flaky fails the first n calls
type flaky struct {
	mu    sync.Mutex
	fails int
	calls int
	log   *[]string
	name  string
}

func (f *flaky) run(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return errors.New("backend unavailable")
	}
	if f.log != nil {
		*f.log = append(*f.log, f.name)
	}
	return nil
}

func TestSubmitAppliesInline(t *testing.T) {
	o, _ := newTestOutbox(Config{Interval: time.Second})
	op := &flaky{}

	ok := o.Submit(context.Background(), Write{Owner: "s1", Aggregate: "trip-1", Name: "trip.insert", Run: op.run})
	assert.True(t, ok)
	assert.Equal(t, 1, op.calls)
	assert.Equal(t, 0, o.Pending("s1"))
}

func TestFailedWriteIsRetried(t *testing.T) {
	o, c := newTestOutbox(Config{Interval: time.Second, MaxInterval: time.Minute})
	op := &flaky{fails: 2}

	var notified []string
	o.OnChange(func(owner string) { notified = append(notified, owner) })

	ctx := context.Background()
	ok := o.Submit(ctx, Write{Owner: "s1", Aggregate: "trip-1", Name: "trip.insert", Run: op.run})
	assert.False(t, ok)
	assert.Equal(t, 1, o.Pending("s1"))
	assert.Equal(t, []string{"s1"}, notified)

	// not due yet
	o.processOnce(ctx)
	assert.Equal(t, 1, op.calls)

	c.advance(10 * time.Second)
	o.processOnce(ctx)
	assert.Equal(t, 2, op.calls)
	assert.Equal(t, 1, o.Pending("s1"))

	c.advance(time.Minute)
	o.processOnce(ctx)
	assert.Equal(t, 3, op.calls)
	assert.Equal(t, 0, o.Pending("s1"))
	assert.Equal(t, []string{"s1", "s1"}, notified)
}

func TestAggregateOrder(t *testing.T) {
	o, c := newTestOutbox(Config{Interval: time.Second})
	ctx := context.Background()

	var applied []string
	first := &flaky{fails: 1, log: &applied, name: "insert"}
	second := &flaky{log: &applied, name: "update"}
	other := &flaky{log: &applied, name: "other"}

	o.Submit(ctx, Write{Owner: "s1", Aggregate: "trip-1", Name: "trip.insert", Run: first.run})
	ok := o.Submit(ctx, Write{Owner: "s1", Aggregate: "trip-1", Name: "trip.update", Run: second.run})
	assert.False(t, ok, "queued behind the failed insert")
	assert.Equal(t, 0, second.calls)
	assert.Equal(t, 2, o.Pending("s1"))

	assert.True(t, o.Submit(ctx, Write{Owner: "s1", Aggregate: "trip-2", Name: "trip.insert", Run: other.run}))

	c.advance(10 * time.Second)
	o.processOnce(ctx)
	assert.Equal(t, []string{"other", "insert", "update"}, applied)
	assert.Equal(t, 0, o.Pending("s1"))
}

func TestPermanentFailureIsDropped(t *testing.T) {
	o, c := newTestOutbox(Config{Interval: time.Second})
	ctx := context.Background()

	calls := 0
	run := func(ctx context.Context) error {
		calls++
		return backoff.Permanent(errors.New("forbidden"))
	}

	assert.False(t, o.Submit(ctx, Write{Owner: "s1", Aggregate: "a", Name: "w", Run: run}))
	assert.Equal(t, 0, o.Pending("s1"))

	c.advance(time.Minute)
	o.processOnce(ctx)
	assert.Equal(t, 1, calls)
}

func TestMaxAttempts(t *testing.T) {
	o, c := newTestOutbox(Config{Interval: time.Second, MaxAttempts: 2})
	ctx := context.Background()
	op := &flaky{fails: 10}

	o.Submit(ctx, Write{Owner: "s1", Aggregate: "a", Name: "w", Run: op.run})
	require.Equal(t, 1, o.Pending("s1"))

	c.advance(time.Minute)
	o.processOnce(ctx)
	assert.Equal(t, 2, op.calls)
	assert.Equal(t, 0, o.Pending("s1"))
}

func TestDropAndFlush(t *testing.T) {
	o, _ := newTestOutbox(Config{Interval: time.Hour})
	ctx := context.Background()
	a := &flaky{fails: 1}
	b := &flaky{fails: 1}

	o.Submit(ctx, Write{Owner: "s1", Aggregate: "x", Name: "w", Run: a.run})
	o.Submit(ctx, Write{Owner: "s2", Aggregate: "y", Name: "w", Run: b.run})
	require.Equal(t, 1, o.Pending("s1"))
	require.Equal(t, 1, o.Pending("s2"))

	assert.Equal(t, 1, o.Drop("s1"))
	assert.Equal(t, 0, o.Pending("s1"))
	assert.Equal(t, 0, o.Drop("s1"))

	o.Flush(ctx)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)
	assert.Equal(t, 0, o.Pending("s2"))
}

func TestRunStopsOnCancel(t *testing.T) {
	o, _ := newTestOutbox(Config{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestFlushOwner(t *testing.T) {
	o, _ := newTestOutbox(Config{Interval: time.Hour})
	ctx := context.Background()
	a := &flaky{fails: 1}
	b := &flaky{fails: 1}
	stuck := &flaky{fails: 10}

	o.Submit(ctx, Write{Owner: "s1", Aggregate: "x", Name: "w", Run: a.run})
	o.Submit(ctx, Write{Owner: "s1", Aggregate: "z", Name: "w", Run: stuck.run})
	o.Submit(ctx, Write{Owner: "s2", Aggregate: "y", Name: "w", Run: b.run})
	require.Equal(t, 2, o.Pending("s1"))

	assert.Equal(t, 1, o.FlushOwner(ctx, "s1"))
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, stuck.calls)
	assert.Equal(t, 1, b.calls, "other owners keep their schedule")
	assert.Equal(t, 1, o.Pending("s2"))

	assert.Equal(t, 0, o.FlushOwner(ctx, "nobody"))
}

func TestPendingCountsInlineAttempt(t *testing.T) {
	o, _ := newTestOutbox(Config{Interval: time.Hour})
	ctx := context.Background()

	var during int
	ok := o.Submit(ctx, Write{Owner: "s1", Aggregate: "x", Name: "w", Run: func(ctx context.Context) error {
		during = o.Pending("s1")
		return nil
	}})
	require.True(t, ok)
	assert.Equal(t, 1, during)
	assert.Equal(t, 0, o.Pending("s1"))
}
