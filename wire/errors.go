package wire

import (
	"errors"
	"fmt"
)

// EscapeError is returned when a token contains an escape sequence outside
// the KATCP escape table.
//
// Connection handling: the peer is not speaking the protocol, CLOSE the connection.
type EscapeError struct {
	Token   string
	Offset  int // byte offset of the offending backslash
	Message string
}

func (e *EscapeError) Error() string {
	return fmt.Sprintf("invalid escape in %q at offset %d: %s", e.Token, e.Offset, e.Message)
}

// ShouldCloseConnection returns true - the stream can no longer be trusted
func (e *EscapeError) ShouldCloseConnection() bool {
	return true
}

// ParseError represents a received line that could not be decoded.
//
// Connection handling: CLOSE the connection
type ParseError struct {
	Line string
	Err  error // Underlying error, usually *EscapeError
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %q", e.Line)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - parse errors indicate corrupted state
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// InvalidNameError is returned when a request name cannot be sent.
// Names must be non-empty and contain no whitespace or control characters.
//
// Connection handling: the request was rejected client-side, the connection is still valid
type InvalidNameError struct {
	Name    string
	Message string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid request name %q: %s", e.Name, e.Message)
}

// ShouldCloseConnection returns false - nothing was written
func (e *InvalidNameError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps underlying I/O errors from connection operations.
//
// Common causes:
//   - Connection reset by peer
//   - Broken pipe on write
//   - Use of a closed connection
//
// Connection handling: the connection is already broken, CLOSE and RECONNECT
type ConnectionError struct {
	Op  string // Operation that failed (read, write, dial)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection they occurred on can still be used.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil and for errors that declare the connection healthy.
// Unknown errors are treated conservatively and return true.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
