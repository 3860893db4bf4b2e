package interview

import (
	"errors"
	"fmt"
)

// Kind classifies failures during an interview.
type Kind int

const (
	// KindPermission means microphone access was denied.
	KindPermission Kind = iota + 1
	// KindTransport means the streaming connection failed or dropped.
	KindTransport
	// KindProtocol means the agent sent a malformed or unexpected event.
	KindProtocol
	// KindEmptyCapture means the silence timeout fired with nothing recorded.
	KindEmptyCapture
	// KindPersistence means a session or transcript write failed.
	KindPersistence
	// KindPlayback means agent audio could not be played.
	KindPlayback
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindEmptyCapture:
		return "empty capture"
	case KindPersistence:
		return "persistence"
	case KindPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// OpCreate is the Op of a failure to create the session record.
const OpCreate = "create session"

// Error is a classified interview failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrPermission   = &Error{Kind: KindPermission}
	ErrTransport    = &Error{Kind: KindTransport}
	ErrProtocol     = &Error{Kind: KindProtocol}
	ErrEmptyCapture = &Error{Kind: KindEmptyCapture}
	ErrPersistence  = &Error{Kind: KindPersistence}
	ErrPlayback     = &Error{Kind: KindPlayback}
)

// ErrInactive is returned when an operation needs an active session.
var ErrInactive = errors.New("interview: session not active")

// NewError returns an *Error of kind for op.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := "interview: " + e.Kind.String() + " error"
	if e.Op != "" {
		msg = fmt.Sprintf("interview: %s: %s error", e.Op, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the Kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Blocking reports whether the failure ends the attempt and needs a retry
// affordance. Everything else is logged and otherwise silent.
func (e *Error) Blocking() bool {
	return e.Kind == KindPermission || (e.Kind == KindPersistence && e.Op == OpCreate)
}

// IsBlocking reports whether err carries a blocking *Error.
func IsBlocking(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Blocking()
}

// Remediation returns user guidance for a blocking error, or "".
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrPermission):
		return "Microphone access was denied. Allow microphone access for this terminal and try again."
	case IsBlocking(err):
		return "The interview session could not be created. Check the session store and try again."
	}
	return ""
}
