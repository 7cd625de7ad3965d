// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package simerr provides the structured, Kind-tagged error type used
// throughout the simulator core. Errors are categorized by Kind rather than
// by concrete type so that callers (notably the syscall-return path, which
// must translate a Kind into an errno) can branch on category without a
// giant switch over concrete error values.
package simerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a simulator error per spec section 7's taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindConnState  // NotConnected, IsListening, AlreadyConnected, InProgress, InvalidState, StreamClosed
	KindPeerDriven // ResetReceived, ResetSent, ConnectionRefused
	KindTimeDriven // TimedOut, ClosedWhileConnecting
	KindResource   // BadAddress, MessageTooLarge, WouldBlock, Interrupted
	KindMemory     // memory-manager bad-address, surfaced as EFAULT
	KindConfig     // parse-time configuration errors, fatal to startup
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindConnState:
		return "conn_state"
	case KindPeerDriven:
		return "peer_driven"
	case KindTimeDriven:
		return "time_driven"
	case KindResource:
		return "resource"
	case KindMemory:
		return "memory"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a structured simulator error.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{
		Kind:    kind,
		Message: msg,
	}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    msg,
		Underlying: err,
	}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Underlying: err,
	}
}

// Attr attaches an attribute to an error. If the error is not an *Error, it wraps it as KindInternal.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{
			Kind:       KindInternal,
			Message:    err.Error(),
			Underlying: err,
		}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of the error, or KindUnknown if it's not a simulator error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes returns all attributes associated with the error and its chain.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error

	// We use errors.As in a loop to collect all attributes in the chain,
	// although typically there's only one simulator error in the chain.
	tempErr := err
	for tempErr != nil {
		if errors.As(tempErr, &e) {
			for k, v := range e.Attributes {
				if _, ok := attrs[k]; !ok {
					attrs[k] = v
				}
			}
			tempErr = e.Underlying
		} else {
			break
		}
	}

	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err, if err's type contains an Unwrap method returning error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Sentinel errors for the TCP/socket taxonomy (spec section 7 and the
// operation matrix in section 4.2). Compare with errors.Is; several
// distinct outcomes share a Kind, so Kind alone never identifies one.
var (
	ErrNotConnected          = New(KindConnState, "not connected")
	ErrIsListening           = New(KindConnState, "socket is listening")
	ErrAlreadyConnected      = New(KindConnState, "already connected")
	ErrInProgress            = New(KindConnState, "connection in progress")
	ErrInvalidState          = New(KindConnState, "operation invalid in current state")
	ErrStreamClosed          = New(KindConnState, "stream closed")
	ErrResetReceived         = New(KindPeerDriven, "connection reset by peer")
	ErrResetSent             = New(KindPeerDriven, "connection reset sent")
	ErrConnectionRefused     = New(KindPeerDriven, "connection refused")
	ErrTimedOut              = New(KindTimeDriven, "timed out")
	ErrClosedWhileConnecting = New(KindTimeDriven, "closed while connecting")
	ErrBadAddress            = New(KindResource, "bad address")
	ErrMessageTooLarge       = New(KindResource, "message too large")
	ErrWouldBlock            = New(KindResource, "would block")
	ErrInterrupted           = New(KindResource, "interrupted")
)
