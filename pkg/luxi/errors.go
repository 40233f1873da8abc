package luxi

import (
	"errors"
	"fmt"
	"net"
)

// ErrJobNotFound is returned by job helpers for unknown job ids
var ErrJobNotFound = errors.New("job not found")

// DecodeError reports call arguments that do not match the method
type DecodeError struct {
	Method string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Method, e.Reason)
}

// TransportError wraps a failure of the underlying connection
type TransportError struct {
	Op  string // "connect", "send" or "receive"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("luxi %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry
func (e *TransportError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ProtocolError reports a message that is not a valid envelope
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "luxi protocol error: " + e.Reason
}

// RemoteError is a well formed response with success set to false
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
