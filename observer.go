package authflow

import (
	"context"
	"errors"

	"github.com/MrEthical07/authflow/gateway"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/machine"
	"github.com/MrEthical07/authflow/session"
)

// observer reports machine diagnostics through the client's logger, metrics and audit
// dispatcher. It runs on the machine goroutine and must not block.
type observer struct {
	c *Client
}

func (o observer) Transition(from, to machine.State, ev machine.EventType) {
	if from == to {
		return
	}
	o.c.log.Debug("authflow: transition", "from", from.String(), "to", to.String(), "event", ev.String())
}

func (o observer) GuardRejected(st machine.State, ev machine.EventType) {
	o.c.metrics.Inc(MetricGuardRejected)
	o.c.log.Debug("authflow: event rejected by guard", "state", st.String(), "event", ev.String())
	o.c.emitAudit(context.Background(), AuditGuardRejected, false, "", nil, func() map[string]string {
		return map[string]string{"state": st.String(), "event": ev.String()}
	})
}

func (o observer) EventIgnored(st machine.State, ev machine.EventType, stale bool) {
	if stale {
		o.c.metrics.Inc(MetricStaleResult)
		o.c.log.Debug("authflow: stale result dropped", "state", st.String(), "event", ev.String())
		return
	}
	o.c.metrics.Inc(MetricEventIgnored)
	o.c.log.Debug("authflow: event ignored", "state", st.String(), "event", ev.String())
}

func (o observer) InvocationFailed(st machine.State, err error) {
	if st == machine.Authorized {
		// profile side task; only a rejected session leaves the authorized state
		if errors.Is(err, session.ErrSessionRejected) {
			o.c.log.Info("authflow: session rejected by server", "error", err)
			return
		}
		o.c.log.Warn("authflow: profile refresh failed", "error", err)
		return
	}
	o.c.log.Debug("authflow: invocation failed", "state", st.String(), "error", err)
}

// userMessage narrows err to the text stored in the machine's AuthError. An empty
// result selects the state's generic message.
func userMessage(err error) string {
	var verr *flows.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrRateLimited.Error()
	}
	return gateway.Message(err)
}
