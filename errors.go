package authflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authflow/internal/rate"
)

var (
	// ErrTimeout is matched by every [*TimeoutError].
	ErrTimeout = errors.New("operation timed out")
	// ErrClientStopped is returned by calls made after, or pending during, [Client.Stop].
	ErrClientStopped = errors.New("client stopped")
	// ErrNotReady is returned when a flow runs without a gateway or session lifecycle.
	ErrNotReady = errors.New("client not ready")
	// ErrOperationFailed is matched by every [*OperationError].
	ErrOperationFailed = errors.New("operation failed")
	// ErrValidation is wrapped by input validation failures raised before any network call.
	ErrValidation = errors.New("invalid input")
	// ErrRateLimited is returned when an email ran out of attempts for the current window.
	ErrRateLimited = rate.ErrRateLimited
	// ErrBuilderUsed is returned by a second call to [Builder.Build].
	ErrBuilderUsed = errors.New("builder already used")
	// ErrGatewayRequired is returned by [Builder.Build] without a gateway or base URL.
	ErrGatewayRequired = errors.New("gateway or Gateway.BaseURL required")
	// ErrRedisRequired is returned when a redis-backed component has no client.
	ErrRedisRequired = errors.New("redis client required")
)

// OperationError reports a call that ended in its failure state. Message is the
// user-safe text the machine stored in its context.
type OperationError struct {
	Op      string
	Message string
}

func (e *OperationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrOperationFailed) hold.
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// TimeoutError reports a call that did not settle within its budget.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// Is makes errors.Is(err, ErrTimeout) hold.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
