// Package syncq replicates local state changes to the backend. A write is
// tried once inline; if that fails it stays queued and a background worker
// retries it with exponential backoff. Writes that share an aggregate id are
// applied in submission order.
package syncq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Write is one replicated change
type Write struct {
	// Owner groups writes for pending counts, usually a session id.
	Owner string
	// Aggregate orders writes: those with the same value run one at a time, in order.
	Aggregate string
	// Name labels metrics and logs, e.g. "trip.update".
	Name string
	Run  func(ctx context.Context) error
}

// Config controls the retry schedule
type Config struct {
	Interval    time.Duration // worker poll interval and first retry delay
	MaxInterval time.Duration
	MaxAttempts int // 0 retries until the write succeeds or fails permanently
}

type entry struct {
	Write
	attempts int
	next     time.Time
	exp      *backoff.ExponentialBackOff
}

// Outbox holds writes that have not reached the backend yet
type Outbox struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	queues   map[string][]*entry
	inflight map[string]bool
	owners   map[string]int
	// inline counts Submit attempts in progress per owner
	inline map[string]int

	lmu       sync.RWMutex
	listeners []func(owner string)
}

// NewOutbox creates an empty outbox
func NewOutbox(cfg Config) *Outbox {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = 5 * time.Minute
	}
	return &Outbox{
		cfg:      cfg,
		now:      time.Now,
		queues:   make(map[string][]*entry),
		inflight: make(map[string]bool),
		owners:   make(map[string]int),
		inline:   make(map[string]int),
	}
}

// OnChange registers fn to be called whenever the pending count of an owner changes
func (o *Outbox) OnChange(fn func(owner string)) {
	o.lmu.Lock()
	o.listeners = append(o.listeners, fn)
	o.lmu.Unlock()
}

// Submit applies w now unless earlier writes for its aggregate are still
// queued. It reports whether w reached the backend; a false return means w
// is queued or was rejected permanently.
func (o *Outbox) Submit(ctx context.Context, w Write) bool {
	submissionsTotal.WithLabelValues(w.Name).Inc()

	o.mu.Lock()
	if len(o.queues[w.Aggregate]) > 0 || o.inflight[w.Aggregate] {
		o.enqueueLocked(&entry{Write: w, next: o.now()}, false)
		o.mu.Unlock()
		o.notify(w.Owner)
		return false
	}
	o.inflight[w.Aggregate] = true
	o.inline[w.Owner]++
	o.mu.Unlock()

	err := o.attempt(ctx, w)

	o.mu.Lock()
	delete(o.inflight, w.Aggregate)
	if o.inline[w.Owner] <= 1 {
		delete(o.inline, w.Owner)
	} else {
		o.inline[w.Owner]--
	}
	if err == nil {
		o.mu.Unlock()
		return true
	}
	if isPermanent(err) {
		o.mu.Unlock()
		failuresTotal.WithLabelValues(w.Name).Inc()
		log.Error().Err(err).Str("owner", w.Owner).Str("write", w.Name).Str("aggregate", w.Aggregate).Msg("Write rejected by backend")
		return false
	}
	e := o.newEntry(w)
	e.attempts = 1
	e.next = o.now().Add(e.exp.NextBackOff())
	// later submissions for this aggregate queued behind the inline attempt
	o.enqueueLocked(e, true)
	o.mu.Unlock()

	log.Warn().Err(err).Str("owner", w.Owner).Str("write", w.Name).Msg("Write queued for retry")
	o.notify(w.Owner)
	return false
}

// Pending returns how many writes of owner have not been applied yet,
// counting inline attempts still in progress.
func (o *Outbox) Pending(owner string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.owners[owner] + o.inline[owner]
}

// Drop discards every queued write of owner and returns how many were dropped
func (o *Outbox) Drop(owner string) int {
	o.mu.Lock()
	dropped := 0
	for agg, q := range o.queues {
		kept := q[:0]
		for _, e := range q {
			if e.Owner == owner {
				dropped++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(o.queues, agg)
		} else {
			o.queues[agg] = kept
		}
	}
	delete(o.owners, owner)
	o.updateGaugeLocked()
	o.mu.Unlock()

	if dropped > 0 {
		droppedTotal.Add(float64(dropped))
		log.Warn().Str("owner", owner).Int("dropped", dropped).Msg("Discarded unsynced writes")
		o.notify(owner)
	}
	return dropped
}

// Run retries queued writes until ctx is cancelled
func (o *Outbox) Run(ctx context.Context) error {
	log.Info().Dur("interval", o.cfg.Interval).Dur("max_interval", o.cfg.MaxInterval).Msg("Outbox worker starting")
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			o.processOnce(ctx)
		}
	}
}

// Flush retries every queued write once, ignoring the backoff schedule
func (o *Outbox) Flush(ctx context.Context) {
	o.mu.Lock()
	now := o.now()
	for _, q := range o.queues {
		for _, e := range q {
			e.next = now
		}
	}
	o.mu.Unlock()
	o.processOnce(ctx)
}

// FlushOwner retries the queued writes of owner once, ignoring the backoff
// schedule, and returns how many are still pending.
func (o *Outbox) FlushOwner(ctx context.Context, owner string) int {
	o.mu.Lock()
	now := o.now()
	var ready []string
	for agg, q := range o.queues {
		if o.inflight[agg] || len(q) == 0 {
			continue
		}
		owned := false
		for _, e := range q {
			if e.Owner == owner {
				e.next = now
				owned = true
			}
		}
		if owned {
			q[0].next = now
			o.inflight[agg] = true
			ready = append(ready, agg)
		}
	}
	o.mu.Unlock()

	for _, agg := range ready {
		o.drain(ctx, agg)
	}
	return o.Pending(owner)
}

// processOnce drains every aggregate whose head is due, stopping at the
// first failure within an aggregate.
func (o *Outbox) processOnce(ctx context.Context) {
	o.mu.Lock()
	now := o.now()
	var ready []string
	for agg, q := range o.queues {
		if o.inflight[agg] || len(q) == 0 || q[0].next.After(now) {
			continue
		}
		o.inflight[agg] = true
		ready = append(ready, agg)
	}
	o.mu.Unlock()

	for _, agg := range ready {
		o.drain(ctx, agg)
	}
}

func (o *Outbox) drain(ctx context.Context, agg string) {
	changed := make(map[string]struct{})
	defer func() {
		for owner := range changed {
			o.notify(owner)
		}
	}()

	for {
		o.mu.Lock()
		q := o.queues[agg]
		if len(q) == 0 {
			delete(o.queues, agg)
			delete(o.inflight, agg)
			o.mu.Unlock()
			return
		}
		head := q[0]
		o.mu.Unlock()

		err := o.attempt(ctx, head.Write)

		o.mu.Lock()
		head.attempts++
		switch {
		case err == nil:
			o.removeLocked(agg, head)
			changed[head.Owner] = struct{}{}
			log.Info().Str("owner", head.Owner).Str("write", head.Name).Int("attempts", head.attempts).Msg("Queued write applied")
		case isPermanent(err) || (o.cfg.MaxAttempts > 0 && head.attempts >= o.cfg.MaxAttempts):
			o.removeLocked(agg, head)
			changed[head.Owner] = struct{}{}
			failuresTotal.WithLabelValues(head.Name).Inc()
			log.Error().Err(err).Str("owner", head.Owner).Str("write", head.Name).Int("attempts", head.attempts).Msg("Giving up on write")
		default:
			wait := head.exp.NextBackOff()
			if wait == backoff.Stop {
				wait = o.cfg.MaxInterval
			}
			head.next = o.now().Add(wait)
			delete(o.inflight, agg)
			o.mu.Unlock()
			log.Warn().Err(err).Str("owner", head.Owner).Str("write", head.Name).Dur("retry_in", wait).Msg("Write retry failed")
			return
		}
		o.mu.Unlock()
	}
}

func (o *Outbox) attempt(ctx context.Context, w Write) error {
	attemptsTotal.WithLabelValues(w.Name).Inc()
	if w.Run == nil {
		return backoff.Permanent(errors.New("write has no run func"))
	}
	return w.Run(ctx)
}

func (o *Outbox) newEntry(w Write) *entry {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.cfg.Interval
	exp.Multiplier = 2
	exp.MaxInterval = o.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &entry{Write: w, exp: exp}
}

func (o *Outbox) enqueueLocked(e *entry, front bool) {
	if e.exp == nil {
		e.exp = o.newEntry(e.Write).exp
	}
	if front {
		o.queues[e.Aggregate] = append([]*entry{e}, o.queues[e.Aggregate]...)
	} else {
		o.queues[e.Aggregate] = append(o.queues[e.Aggregate], e)
	}
	o.owners[e.Owner]++
	o.updateGaugeLocked()
}

// removeLocked pops head unless Drop already discarded it
func (o *Outbox) removeLocked(agg string, head *entry) {
	q := o.queues[agg]
	if len(q) == 0 || q[0] != head {
		return
	}
	o.queues[agg] = q[1:]
	if o.owners[head.Owner] <= 1 {
		delete(o.owners, head.Owner)
	} else {
		o.owners[head.Owner]--
	}
	o.updateGaugeLocked()
}

func (o *Outbox) updateGaugeLocked() {
	total := 0
	for _, n := range o.owners {
		total += n
	}
	pendingWrites.Set(float64(total))
}

func (o *Outbox) notify(owner string) {
	o.lmu.RLock()
	listeners := append([]func(string){}, o.listeners...)
	o.lmu.RUnlock()
	for _, fn := range listeners {
		fn(owner)
	}
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
