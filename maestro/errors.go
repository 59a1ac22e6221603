package maestro

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout        = errors.New("communication timeout")
	ErrNoResponse     = errors.New("no response from controller")
	ErrNotInitialized = errors.New("session is not initialized")
	ErrLengthMismatch = errors.New("channel and value counts differ")
	ErrValueRange     = errors.New("value outside protocol range")
)

// CommError represents a transport-level failure during an operation.
type CommError struct {
	Op  string // Operation that failed (e.g., "set_target", "get_errors")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// ChannelError represents a failure tied to a specific channel.
type ChannelError struct {
	Channel int    // Channel index
	Op      string // Operation that failed
	Err     error  // Underlying error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %d %s failed: %v", e.Channel, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNoResponse returns true if the error indicates no response was received.
func IsNoResponse(err error) bool {
	return errors.Is(err, ErrNoResponse)
}
