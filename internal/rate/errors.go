package rate

import "errors"

var (
	// ErrRateLimited is returned once an action exhausted its attempt budget. Its message
	// is shown to users as-is.
	ErrRateLimited = errors.New("Too many attempts. Please try again later.")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
