package bridge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected rejects commands issued while the link is down.
	// Commands are never queued; the engine must be running.
	ErrNotConnected = errors.New("not connected to engine")

	// ErrConnectionClosed terminates every pending request when the link
	// drops before their responses arrive.
	ErrConnectionClosed = errors.New("connection closed before response")
)

// ConnectError reports a handshake failure before the bridge has ever been
// connected. Later failures route through the reconnection supervisor
// instead.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to engine: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a command's deadline elapsed before the engine
// responded. A response arriving later is ignored.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %s", e.Command, e.Timeout)
}

// RemoteError carries an error message the engine attached to a command
// result.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("engine error: %s", e.Message)
}
