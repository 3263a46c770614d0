package session

// UserProfile identifies the signed-in user.
//
// A profile is only accepted when both ID and Email are present; after that it is treated
// as immutable and replaced wholesale on re-fetch.
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Valid reports whether the profile carries the mandatory fields.
func (p *UserProfile) Valid() bool {
	return p != nil && p.ID != "" && p.Email != ""
}

// Session is the credential bundle for an authenticated identity.
//
// AccessToken is never empty for a Session that exists; constructors in this package and
// the stores refuse to produce one that violates this.
type Session struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	Profile      *UserProfile `json:"profile,omitempty"`
}

// Valid reports whether s satisfies the non-empty access token invariant.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != ""
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	return &out
}

// WithAccessToken returns a copy of s carrying a new access token. The refresh token and
// profile are carried forward unchanged.
func (s *Session) WithAccessToken(accessToken string) *Session {
	out := s.Clone()
	out.AccessToken = accessToken
	return out
}

// WithProfile returns a copy of s whose profile is replaced by p. Tokens are unchanged.
func (s *Session) WithProfile(p *UserProfile) *Session {
	out := s.Clone()
	if p == nil {
		out.Profile = nil
		return out
	}
	cp := *p
	out.Profile = &cp
	return out
}
