package authflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authflow/machine"
)

// operation describes how one client call observes the machine.
type operation struct {
	name    string
	timeout time.Duration
	success func(machine.Snapshot) bool
	failure func(machine.Snapshot) bool
}

type outcome struct {
	snap machine.Snapshot
	err  error
}

// waiter settles one call from the snapshot stream. Only handled snapshots produced by
// the call's own event, or by later events, are considered.
type waiter struct {
	op        operation
	done      chan outcome
	completed atomic.Bool

	mu      sync.Mutex
	armed   bool
	seq     uint64
	pending []machine.Snapshot
}

func newWaiter(op operation) *waiter {
	return &waiter{op: op, done: make(chan outcome, 1)}
}

// observe is the machine subscription. Snapshots that arrive before the call's
// sequence number is known are buffered.
func (w *waiter) observe(s machine.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		w.pending = append(w.pending, s)
		return
	}
	w.evaluate(s)
}

// arm sets the first sequence number the waiter accepts and replays buffered
// snapshots.
func (w *waiter) arm(seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
	w.seq = seq
	pending := w.pending
	w.pending = nil
	for _, s := range pending {
		w.evaluate(s)
	}
}

func (w *waiter) evaluate(s machine.Snapshot) {
	if w.completed.Load() || !s.Handled || s.Seq < w.seq {
		return
	}
	switch {
	case w.op.success != nil && w.op.success(s):
		w.settle(outcome{snap: s})
	case w.op.failure != nil && w.op.failure(s):
		w.settle(outcome{snap: s, err: failureError(w.op.name, s)})
	}
}

// settle delivers o unless the waiter already settled. It reports whether o won.
func (w *waiter) settle(o outcome) bool {
	if !w.completed.CompareAndSwap(false, true) {
		return false
	}
	w.done <- o
	return true
}

func failureError(op string, s machine.Snapshot) error {
	msg := "operation failed"
	if s.Context.Error != nil && s.Context.Error.Message != "" {
		msg = s.Context.Error.Message
	}
	return &OperationError{Op: op, Message: msg}
}

// await subscribes, runs trigger, and blocks until op settles, its timeout fires, ctx
// ends, or the client stops. trigger returns the first sequence number the call
// accepts, or 0 when the machine is stopped. On timeout or cancellation a CANCEL is
// sent so the machine does not stay in a submitting state.
func (c *Client) await(ctx context.Context, op operation, trigger func() uint64) (machine.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	w := newWaiter(op)
	if !c.track(w) {
		return machine.Snapshot{}, ErrClientStopped
	}
	defer c.untrack(w)

	unsubscribe := c.machine.Subscribe(w.observe)
	defer unsubscribe()

	seq := trigger()
	if seq == 0 {
		return machine.Snapshot{}, ErrClientStopped
	}
	w.arm(seq)

	timer := time.NewTimer(op.timeout)
	defer timer.Stop()

	var out outcome
	select {
	case out = <-w.done:
	case <-timer.C:
		if w.settle(outcome{err: &TimeoutError{Op: op.name, Timeout: op.timeout}}) {
			c.abandon(op.name, unsubscribe)
			c.metrics.Inc(MetricOperationTimeout)
			c.log.Warn("authflow: operation timed out", "op", op.name, "timeout", op.timeout)
			c.emitAudit(ctx, AuditOperationTimeout, false, "", nil, func() map[string]string {
				return map[string]string{"op": op.name, "timeout": op.timeout.String()}
			})
		}
		// exactly one settle won; its outcome is buffered in done
		out = <-w.done
	case <-ctx.Done():
		if w.settle(outcome{err: ctx.Err()}) {
			c.abandon(op.name, unsubscribe)
		}
		out = <-w.done
	}

	c.metrics.Observe(MetricOperationLatency, time.Since(start))
	return out.snap, out.err
}

// send returns a trigger that sends ev.
func (c *Client) send(ev machine.Event) func() uint64 {
	return func() uint64 {
		return c.machine.Send(ev)
	}
}

func (c *Client) abandon(op string, unsubscribe func()) {
	unsubscribe()
	if c.machine.Send(machine.Simple(machine.EventCancel)) != 0 {
		c.log.Debug("authflow: cancel sent for abandoned call", "op", op)
	}
}

func (c *Client) track(w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.waiters[w] = struct{}{}
	return true
}

func (c *Client) untrack(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, w)
}
