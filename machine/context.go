package machine

import "github.com/MrEthical07/authflow/session"

// AuthError is the user-safe description of the last failure.
type AuthError struct {
	Message string `json:"message"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// Credentials is an email/password pair held by a flow until it completes.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FlowContext is the scratch state of a registration or password reset. The zero
// value means no flow is in progress.
type FlowContext struct {
	Email              string       `json:"email,omitempty"`
	ActionToken        string       `json:"actionToken,omitempty"`
	PendingCredentials *Credentials `json:"pendingCredentials,omitempty"`
}

func (f FlowContext) clone() FlowContext {
	if f.PendingCredentials != nil {
		c := *f.PendingCredentials
		f.PendingCredentials = &c
	}
	return f
}

// Active reports whether a flow was started.
func (f FlowContext) Active() bool {
	return f.Email != ""
}

// Context is the data attached to the machine state.
type Context struct {
	Session       *session.Session `json:"session,omitempty"`
	Error         *AuthError       `json:"error,omitempty"`
	Registration  FlowContext      `json:"registration"`
	PasswordReset FlowContext      `json:"passwordReset"`
	// LogoutPending is set while a LOGOUT waits for a refresh to settle.
	LogoutPending bool             `json:"logoutPending,omitempty"`
}

// Clone returns a deep copy of c.
func (c Context) Clone() Context {
	out := Context{
		Session:       c.Session.Clone(),
		Registration:  c.Registration.clone(),
		PasswordReset: c.PasswordReset.clone(),
		LogoutPending: c.LogoutPending,
	}
	if c.Error != nil {
		e := *c.Error
		out.Error = &e
	}
	return out
}
