package machine

// Observer receives diagnostics from the machine loop. Methods are called on the loop
// goroutine and must not block.
type Observer interface {
	Transition(from, to State, ev EventType)
	// GuardRejected reports an event dropped because its guard failed.
	GuardRejected(st State, ev EventType)
	// EventIgnored reports an event with no transition in st, or a stale invocation
	// result when stale is true.
	EventIgnored(st State, ev EventType, stale bool)
	InvocationFailed(st State, err error)
}

// NopObserver discards all diagnostics.
type NopObserver struct{}

func (NopObserver) Transition(State, State, EventType)  {}
func (NopObserver) GuardRejected(State, EventType)      {}
func (NopObserver) EventIgnored(State, EventType, bool) {}
func (NopObserver) InvocationFailed(State, error)       {}
