package session

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidSession is returned when encoding a session that breaks the access token
// invariant.
var ErrInvalidSession = errors.New("invalid session: empty access token")

// Encode serializes s into its persisted JSON form.
func Encode(s *Session) (string, error) {
	if !s.Valid() {
		return "", ErrInvalidSession
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a persisted value.
//
// The rules, in order:
//   - empty or whitespace-only: no session
//   - a JSON object: a session when accessToken is a non-empty string, otherwise none;
//     an invalid profile is dropped rather than failing the whole record
//   - a JSON string literal: a legacy session using that string as the access token
//   - any other valid JSON (number, bool, null, array): no session
//   - text starting like JSON but failing to parse: no session
//   - anything else: a legacy bare access token
//
// ok is false whenever no usable session was found. Decode never fails loudly.
func Decode(raw string) (s *Session, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	if json.Valid([]byte(raw)) {
		switch raw[0] {
		case '{':
			var out Session
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				// accessToken present with a non-string type
				return nil, false
			}
			if out.AccessToken == "" {
				return nil, false
			}
			if !out.Profile.Valid() {
				out.Profile = nil
			}
			return &out, true
		case '"':
			var token string
			if err := json.Unmarshal([]byte(raw), &token); err != nil || strings.TrimSpace(token) == "" {
				return nil, false
			}
			return &Session{AccessToken: strings.TrimSpace(token)}, true
		default:
			return nil, false
		}
	}

	if raw[0] == '{' || raw[0] == '[' || raw[0] == '"' {
		return nil, false
	}
	return &Session{AccessToken: raw}, true
}
