package authflow

import (
	"github.com/MrEthical07/authflow/machine"
	"github.com/MrEthical07/authflow/session"
)

// IsLoggedIn reports whether a session is active.
func (c *Client) IsLoggedIn() bool {
	return c.machine.Snapshot().State.IsAuthorized()
}

// IsLoading reports whether the machine waits on a remote call or storage.
func (c *Client) IsLoading() bool {
	return c.machine.Snapshot().State.Busy()
}

// HasError reports whether the last attempt left an error.
func (c *Client) HasError() bool {
	return c.machine.Snapshot().Context.Error != nil
}

// GetError returns the user-safe message of the last failure, or "".
func (c *Client) GetError() string {
	if e := c.machine.Snapshot().Context.Error; e != nil {
		return e.Message
	}
	return ""
}

// GetSession returns a copy of the active session, or nil.
func (c *Client) GetSession() *session.Session {
	return c.machine.Snapshot().Context.Session.Clone()
}

// GetState returns the current machine state.
func (c *Client) GetState() machine.State {
	return c.machine.Snapshot().State
}

// Matches reports whether the current state is pattern or nested under it, for
// example "unauthorized" or "unauthorized.register".
func (c *Client) Matches(pattern string) bool {
	return c.machine.Snapshot().Matches(pattern)
}

// GetContext returns a copy of the machine context.
func (c *Client) GetContext() machine.Context {
	return c.machine.Snapshot().Context
}

// Subscribe registers fn for every snapshot published from now on. fn runs on the
// machine goroutine and must not block or call [Client.Stop].
func (c *Client) Subscribe(fn func(machine.Snapshot)) (unsubscribe func()) {
	return c.machine.Subscribe(fn)
}

// GoToLogin shows the login form, discarding any flow in progress.
func (c *Client) GoToLogin() {
	c.machine.Send(machine.Simple(machine.EventGoToLogin))
}

// GoToRegister shows the registration form, discarding any flow in progress.
func (c *Client) GoToRegister() {
	c.machine.Send(machine.Simple(machine.EventGoToRegister))
}

// GoToForgotPassword shows the password reset form, discarding any flow in progress.
func (c *Client) GoToForgotPassword() {
	c.machine.Send(machine.Simple(machine.EventGoToForgotPassword))
}

// Cancel abandons the current step. The result of an in-flight call is ignored.
func (c *Client) Cancel() {
	c.machine.Send(machine.Simple(machine.EventCancel))
}

// MetricsSnapshot returns a copy of the client's counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Config returns a copy of the configuration the client was built with.
func (c *Client) Config() Config {
	return cloneConfig(c.cfg)
}
