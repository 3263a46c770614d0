package machine

import (
	"context"
	"sync"
	"sync/atomic"
)

// Snapshot is the machine as seen right after processing one event.
type Snapshot struct {
	// Seq is the sequence number [Machine.Send] returned for the event. The snapshot
	// published at startup has Seq 0.
	Seq     uint64
	State   State
	Context Context
	Event   EventType
	// Handled is false when the event was ignored by the current state, dropped by a
	// guard, or a stale invocation result.
	Handled bool
}

// Matches is shorthand for s.State.Matches(pattern).
func (s Snapshot) Matches(pattern string) bool {
	return s.State.Matches(pattern)
}

// Option configures a [Machine].
type Option func(*Machine)

// WithObserver installs an [Observer].
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithMessageFunc sets how a failed invocation's error becomes the user-visible
// [AuthError] message. An empty result selects the state's generic message. The
// default uses err.Error().
func WithMessageFunc(fn func(error) string) Option {
	return func(m *Machine) {
		if fn != nil {
			m.message = fn
		}
	}
}

type queued struct {
	seq uint64
	ev  Event
}

type subscription struct {
	fn     func(Snapshot)
	active atomic.Bool
}

// Machine is the single-goroutine actor running the state machine.
type Machine struct {
	services Services
	observer Observer
	message  func(error) string

	ctx      context.Context
	cancel   context.CancelFunc
	wake     chan struct{}
	done     chan struct{}
	calls    sync.WaitGroup
	stopOnce sync.Once

	mu      sync.Mutex
	queue   []queued
	seq     uint64
	started bool
	stopped bool
	current Snapshot
	subs    []*subscription

	// owned by the loop goroutine
	state      State
	context    Context
	invocation uint64
	lastInvoke uint64
}

// New creates a Machine in [CheckingSession]. Call [Machine.Start] to run it.
func New(services Services, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		services: services,
		observer: NopObserver{},
		message:  func(err error) string { return err.Error() },
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		state:    CheckingSession,
		current:  Snapshot{State: CheckingSession},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the loop and the startup session check. Calling it twice, or after
// Stop, does nothing.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	go m.loop()
}

// Stop ends the loop, cancels in-flight invocations, and drops every subscriber and
// queued event. It blocks until the invocation goroutines have returned, so it must not
// be called from a subscriber.
func (m *Machine) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		started := m.started
		for _, s := range m.subs {
			s.active.Store(false)
		}
		m.subs = nil
		m.queue = nil
		m.mu.Unlock()

		m.cancel()
		if started {
			<-m.done
		}
		m.calls.Wait()
	})
}

// Send queues ev and returns its sequence number, or 0 when the machine is stopped.
// It never blocks.
func (m *Machine) Send(ev Event) uint64 {
	if ev.Type.Internal() {
		return 0
	}
	return m.enqueue(ev)
}

func (m *Machine) enqueue(ev Event) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return 0
	}
	m.seq++
	m.queue = append(m.queue, queued{seq: m.seq, ev: ev})
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return m.seq
}

// Subscribe registers fn for every snapshot published after this call. fn runs on the
// loop goroutine: it may call Send and the returned unsubscribe, but must not block.
func (m *Machine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return func() {}
	}
	m.subs = append(m.subs, sub)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s == sub {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Snapshot returns the latest published snapshot.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.current
	snap.Context = snap.Context.Clone()
	return snap
}

func (m *Machine) loop() {
	defer close(m.done)

	m.enter(m.state, Event{})
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
		}

		for {
			item, ok := m.pop()
			if !ok {
				break
			}
			if m.ctx.Err() != nil {
				return
			}
			m.process(item)
		}
	}
}

func (m *Machine) pop() (queued, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return queued{}, false
	}
	item := m.queue[0]
	m.queue[0] = queued{}
	m.queue = m.queue[1:]
	return item, true
}

func (m *Machine) process(item queued) {
	from, ev := m.state, item.ev

	if ev.Type.Internal() {
		if ev.invocation == 0 || ev.invocation != m.invocation {
			m.observer.EventIgnored(from, ev.Type, true)
			m.publish(item.seq, ev.Type, false)
			return
		}
		m.invocation = 0
		if ev.Type == eventFailed {
			ev.message = m.message(ev.err)
			m.observer.InvocationFailed(from, ev.err)
		}
	}

	to, c, out := next(from, m.context, ev)
	switch out {
	case outcomeIgnored:
		m.observer.EventIgnored(from, ev.Type, false)
		m.publish(item.seq, ev.Type, false)
		return
	case outcomeGuardRejected:
		m.observer.GuardRejected(from, ev.Type)
		m.publish(item.seq, ev.Type, false)
		return
	}

	m.context = c
	if to != from {
		m.state = to
		m.enter(to, ev)
	}
	m.observer.Transition(from, to, ev.Type)
	m.publish(item.seq, ev.Type, true)
}

// enter starts the invocation of st, if it has one. Any earlier invocation becomes
// stale.
func (m *Machine) enter(st State, trigger Event) {
	m.invocation = 0
	run, ok := invocationFor(st, m.context, trigger)
	if !ok {
		return
	}

	m.lastInvoke++
	id := m.lastInvoke
	m.invocation = id

	m.calls.Add(1)
	go func() {
		defer m.calls.Done()
		result := run(m.ctx, m.services)
		result.invocation = id
		m.enqueue(result)
	}()
}

func (m *Machine) publish(seq uint64, t EventType, handled bool) {
	snap := Snapshot{Seq: seq, State: m.state, Context: m.context, Event: t, Handled: handled}

	m.mu.Lock()
	m.current = Snapshot{Seq: seq, State: m.state, Context: m.context.Clone(), Event: t, Handled: handled}
	subs := append([]*subscription(nil), m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		out := snap
		out.Context = snap.Context.Clone()
		s.fn(out)
	}
}
