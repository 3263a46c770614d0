package authflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/flows"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/machine"
	"github.com/MrEthical07/authflow/session"
)

// Client is the blocking facade over the authentication machine. Each call sends one
// event and waits for the resulting state, bounded by the configured timeout.
//
// Client methods are safe to call from multiple goroutines. Concurrent calls share the
// single machine, so they observe each other's effects in send order.
type Client struct {
	cfg       Config
	machine   *machine.Machine
	lifecycle *session.Lifecycle
	limiter   *rate.Limiter
	metrics   *Metrics
	audit     *internalaudit.Dispatcher
	refresher *refresher
	log       *slog.Logger
	closers   []func() error

	mu       sync.Mutex
	waiters  map[*waiter]struct{}
	stopped  bool
	stopOnce sync.Once
	stopErr  error
}

func interactive(name string, c *Client, success, failure func(machine.Snapshot) bool) operation {
	return operation{name: name, timeout: c.cfg.Timeouts.Interactive, success: success, failure: failure}
}

func isAuthorized(s machine.Snapshot) bool {
	return s.State == machine.Authorized
}

func isUnauthorized(s machine.Snapshot) bool {
	return s.State.IsUnauthorized()
}

// failedUnauthorized matches any signed-out resting state carrying an error. Busy
// states clear the error on entry, so such a snapshot ends the call's flow step.
func failedUnauthorized(s machine.Snapshot) bool {
	return s.State.IsUnauthorized() && s.Context.Error != nil
}

func sessionOf(s machine.Snapshot) *session.Session {
	return s.Context.Session.Clone()
}

// Login signs in with email and password and returns the stored session.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Session, error) {
	op := interactive("login", c, isAuthorized, failedUnauthorized)
	snap, err := c.await(ctx, op, c.send(machine.Login(email, password)))
	if err != nil {
		return nil, err
	}
	return sessionOf(snap), nil
}

// Register creates an account and returns once the server asked for the one-time
// passcode. Continue with [Client.VerifyOTP]. The email is trimmed and lower-cased once,
// and every later step of the flow uses that form.
func (c *Client) Register(ctx context.Context, email, password string) error {
	op := interactive("register", c, func(s machine.Snapshot) bool {
		return s.State == machine.RegisterVerifyOTP
	}, failedUnauthorized)
	_, err := c.await(ctx, op, c.send(machine.Register(flows.NormalizeEmail(email), password)))
	return err
}

// RequestPasswordReset asks the server to send a passcode to email. Continue with
// [Client.VerifyOTP].
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	op := interactive("requestPasswordReset", c, func(s machine.Snapshot) bool {
		return s.State == machine.ForgotPasswordVerifyOTP
	}, failedUnauthorized)
	_, err := c.await(ctx, op, c.send(machine.ForgotPassword(flows.NormalizeEmail(email))))
	return err
}

// VerifyOTP submits the passcode of the registration or password reset in progress.
// A registration continues through completion and sign-in; a password reset stops
// and waits for [Client.CompletePasswordReset].
//
// The call is dropped without a state change when no flow holds an email; it then
// ends with a timeout.
func (c *Client) VerifyOTP(ctx context.Context, otp string) error {
	op := interactive("verifyOtp", c, func(s machine.Snapshot) bool {
		return s.State == machine.Authorized || s.State == machine.ForgotPasswordReset
	}, failedUnauthorized)
	_, err := c.await(ctx, op, c.send(machine.VerifyOTP(otp)))
	return err
}

// CompleteRegistration retries the completion step of a registration whose passcode
// was already verified, then signs in.
func (c *Client) CompleteRegistration(ctx context.Context) (*session.Session, error) {
	op := interactive("completeRegistration", c, isAuthorized, failedUnauthorized)
	snap, err := c.await(ctx, op, c.send(machine.CompleteRegistration()))
	if err != nil {
		return nil, err
	}
	return sessionOf(snap), nil
}

// CompletePasswordReset sets newPassword with the verified action token, then signs
// in with it.
func (c *Client) CompletePasswordReset(ctx context.Context, newPassword string) (*session.Session, error) {
	op := interactive("completePasswordReset", c, isAuthorized, failedUnauthorized)
	snap, err := c.await(ctx, op, c.send(machine.ResetPassword(newPassword)))
	if err != nil {
		return nil, err
	}
	return sessionOf(snap), nil
}

// Refresh exchanges the refresh token for a new access token. A failure signs the user
// out. A [Client.Logout] issued while the refresh runs is held until the refresh
// settles and then wins; the refresh call fails.
func (c *Client) Refresh(ctx context.Context) (*session.Session, error) {
	op := interactive("refresh", c, isAuthorized, func(s machine.Snapshot) bool {
		return s.State == machine.LoggingOut || failedUnauthorized(s)
	})
	snap, err := c.await(ctx, op, c.send(machine.Simple(machine.EventRefresh)))
	if err != nil {
		return nil, err
	}
	return sessionOf(snap), nil
}

// Logout signs out on the server and removes the stored session. When the server call
// fails the user stays signed in and the error is returned. Logging out while signed
// out succeeds at once and leaves a running sign-in flow alone. During a refresh the
// logout starts once the refresh settles.
func (c *Client) Logout(ctx context.Context) error {
	op := interactive("logout", c, isUnauthorized, func(s machine.Snapshot) bool {
		return s.State == machine.Authorized && s.Context.Error != nil
	})
	_, err := c.await(ctx, op, c.send(machine.Simple(machine.EventLogout)))
	return err
}

// CheckSession re-runs the stored session check and returns the usable session, or nil
// when signed out. While the startup check is still running it waits for that check
// instead of starting another.
func (c *Client) CheckSession(ctx context.Context) (*session.Session, error) {
	op := operation{
		name:    "checkSession",
		timeout: c.cfg.Timeouts.SessionRestore,
		success: func(s machine.Snapshot) bool {
			return s.State == machine.Authorized || s.State.IsUnauthorized()
		},
	}
	snap, err := c.await(ctx, op, func() uint64 {
		// join a check already running; its result has a later sequence number
		if current := c.machine.Snapshot(); current.State == machine.CheckingSession {
			return current.Seq + 1
		}
		return c.machine.Send(machine.Simple(machine.EventCheckSession))
	})
	if err != nil {
		return nil, err
	}
	if snap.State != machine.Authorized {
		return nil, nil
	}
	return sessionOf(snap), nil
}

// Stop tears the client down: pending calls return [ErrClientStopped], subscribers
// are dropped, in-flight work is cancelled, and owned stores are closed. It is safe to
// call more than once.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		waiters := make([]*waiter, 0, len(c.waiters))
		for w := range c.waiters {
			waiters = append(waiters, w)
		}
		c.mu.Unlock()

		for _, w := range waiters {
			w.settle(outcome{err: ErrClientStopped})
		}

		c.refresher.stop()
		c.machine.Stop()
		c.audit.Close()

		var errs []error
		for _, closeFn := range c.closers {
			if err := closeFn(); err != nil {
				errs = append(errs, err)
			}
		}
		c.stopErr = errors.Join(errs...)
	})
	return c.stopErr
}
