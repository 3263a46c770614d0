package authflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authflow/jwt"
	"github.com/MrEthical07/authflow/machine"
)

// refresher sends REFRESH ahead of access token expiry while the machine rests in the
// authorized state. It follows the machine through a subscription.
type refresher struct {
	cfg     RefreshConfig
	decoder *jwt.Decoder
	send    func(machine.Event) uint64
	metrics *Metrics
	log     *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	token   string
	stopped bool
}

func newRefresher(cfg RefreshConfig, decoder *jwt.Decoder, send func(machine.Event) uint64, metrics *Metrics, log *slog.Logger) *refresher {
	if !cfg.Enabled {
		return nil
	}
	return &refresher{
		cfg:     cfg,
		decoder: decoder,
		send:    send,
		metrics: metrics,
		log:     log,
	}
}

// delay returns how long to wait before refreshing token.
func (r *refresher) delay(token string) (time.Duration, bool) {
	var d time.Duration
	if remaining, ok := r.decoder.ExpiresIn(token); ok {
		d = remaining - r.cfg.Leeway
	} else if r.cfg.Interval > 0 {
		d = r.cfg.Interval
	} else {
		return 0, false
	}
	if d < r.cfg.MinDelay {
		d = r.cfg.MinDelay
	}
	return d, true
}

// observe arms a timer for each new access token seen in the authorized state and
// disarms it everywhere else.
func (r *refresher) observe(s machine.Snapshot) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	if s.State != machine.Authorized || s.Context.Session == nil {
		r.disarmLocked()
		return
	}
	token := s.Context.Session.AccessToken
	if r.timer != nil && r.token == token {
		return
	}
	r.disarmLocked()

	d, ok := r.delay(token)
	if !ok {
		return
	}
	r.token = token
	r.timer = time.AfterFunc(d, r.fire)
	r.log.Debug("authflow: background refresh scheduled", "in", d)
}

func (r *refresher) fire() {
	r.mu.Lock()
	if r.stopped || r.timer == nil {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.token = ""
	r.mu.Unlock()

	r.metrics.Inc(MetricBackgroundRefresh)
	r.send(machine.Simple(machine.EventRefresh))
}

func (r *refresher) disarmLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.token = ""
}

func (r *refresher) stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.disarmLocked()
}
