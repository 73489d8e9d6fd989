// Package errs defines the error taxonomy shared by transports, the expect engine,
// the NETCONF client and sessions. Callers discriminate with errors.As.
package errs

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotSupported is returned when an operation is not available for a protocol or device.
var ErrNotSupported = errors.New("operation not supported")

// ConnectionError reports that a transport could not be established or was lost.
type ConnectionError struct {
	Target string
	// Partial holds any output read before the connection failed.
	Partial []string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection to %s failed", e.Target)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError reports rejected credentials.
type AuthenticationError struct {
	Target   string
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication failed for %q on %s", e.Username, e.Target)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TimeoutError reports that an expected pattern or reply did not arrive in time.
// Partial carries the output lines received before the deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Partial []string
	// Err is set when the wait was cut short by a cancelled context.
	Err error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s timed out after %v (%d partial lines)", e.Op, e.Timeout, len(e.Partial))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ProtocolError reports malformed framing, a message-id mismatch or an unexpected message.
type ProtocolError struct {
	Msg      string
	Fragment string
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := "protocol error: " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Fragment != "" {
		msg += fmt.Sprintf(" [%s]", truncate(e.Fragment, 120))
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError reports that the candidate configuration failed validation.
type ValidationError struct {
	Reply  string
	Errors []error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + joinErrors(e.Errors)
}

// CommitError reports that the device refused to commit the candidate configuration.
type CommitError struct {
	Reply  string
	Errors []error
}

func (e *CommitError) Error() string {
	return "commit failed: " + joinErrors(e.Errors)
}

// StateError reports an operation attempted in a session state that does not permit it.
type StateError struct {
	Op    string
	State string
	Err   error
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("%s not permitted in state %s", e.Op, e.State)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StateError) Unwrap() error { return e.Err }

// IsFatal reports whether err leaves the session unusable.
func IsFatal(err error) bool {
	var ce *ConnectionError
	var pe *ProtocolError
	return errors.As(err, &ce) || errors.As(err, &pe)
}

// PartialOutput returns the partial output carried by a timeout or connection error.
func PartialOutput(err error) []string {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.Partial
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Partial
	}
	return nil
}

func joinErrors(errs []error) string {
	if len(errs) == 0 {
		return "no detail"
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
