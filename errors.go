package katcp

import (
	"errors"
	"fmt"

	"github.com/pior/katcp/wire"
)

// Failure classes of a request whose retry budget is exhausted.
// Use errors.Is against a *RequestError to classify it.
var (
	ErrTimeout       = errors.New("katcp: socket timeout")
	ErrSocket        = errors.New("katcp: socket error")
	ErrSocketEOF     = errors.New("katcp: socket closed by peer")
	ErrRequestFailed = errors.New("katcp: request failed")
)

var (
	// ErrConnectTimeout matches dial failures caused by the connect timeout.
	ErrConnectTimeout = errors.New("katcp: connect timeout")

	// ErrReadTimeout is returned by Transport.ReadLine when no full line arrived in time.
	ErrReadTimeout = errors.New("katcp: read timeout")

	// ErrNotConnected is returned by Transport operations on a closed transport.
	ErrNotConnected = errors.New("katcp: not connected")

	// ErrMessageComplete is returned when appending to a message that already has its reply.
	ErrMessageComplete = errors.New("katcp: message already complete")

	// ErrNoHost is returned when a client is configured without a remote host.
	ErrNoHost = errors.New("katcp: no host configured")
)

// failureKind maps a sentinel name to its failure class.
func failureKind(sentinel string) error {
	switch sentinel {
	case wire.SentinelTimeout:
		return ErrTimeout
	case wire.SentinelError:
		return ErrSocket
	case wire.SentinelEOF:
		return ErrSocketEOF
	default:
		return ErrRequestFailed
	}
}

// RequestError is returned when a request failed twice in a row at the
// transport level. Message holds the lines collected before the failure.
//
// Connection handling: the connection is broken, it will be re-established
// on the next request.
type RequestError struct {
	Request string   // normalized request name
	Kind    error    // ErrTimeout, ErrSocket, ErrSocketEOF or ErrRequestFailed
	Message *Message // partial message of the last attempt, never nil
	Err     error    // underlying cause, if any (e.g. a failed reconnect)
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("katcp: request %q failed: %v: %v", e.Request, e.Kind, e.Err)
	}
	return fmt.Sprintf("katcp: request %q failed: %v", e.Request, e.Kind)
}

// Unwrap exposes both the failure class and the cause to errors.Is/As.
func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ShouldCloseConnection returns true
func (e *RequestError) ShouldCloseConnection() bool {
	return true
}

// StatusError is returned by Client.Call when the device replied with a
// status other than "ok".
//
// Connection handling: the protocol state is intact, the connection can be REUSED
type StatusError struct {
	Request string
	Status  string
	Message *Message
}

func (e *StatusError) Error() string {
	if payload := e.Message.Payload(); payload != "" {
		return fmt.Sprintf("katcp: request %q returned %s: %s", e.Request, e.Status, payload)
	}
	return fmt.Sprintf("katcp: request %q returned %s", e.Request, e.Status)
}

// ShouldCloseConnection returns false - the device answered
func (e *StatusError) ShouldCloseConnection() bool {
	return false
}

// ConnectError is returned when a transport cannot be established.
// It matches ErrConnectTimeout when the dial timed out.
type ConnectError struct {
	Addr    string
	Timeout bool
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("katcp: connect to %s timed out: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("katcp: connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	return target == ErrConnectTimeout && e.Timeout
}

// ShouldCloseConnection returns true - there is no usable connection
func (e *ConnectError) ShouldCloseConnection() bool {
	return true
}
