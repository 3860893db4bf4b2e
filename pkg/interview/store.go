package interview

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store for an unknown session id.
var ErrNotFound = errors.New("interview: session not found")

// Store persists Session records.
//
// UpdateSession must apply updates with ApplyUpdate semantics: a non-empty
// stored transcript is never overwritten by an empty or shorter one.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateSession creates a pending session and returns it with its id
	// and creation time set.
	CreateSession(ctx context.Context, stage Stage, user string) (*Session, error)
	UpdateSession(ctx context.Context, id string, u Update) error
	GetSession(ctx context.Context, id string) (*Session, error)
	// ListSessions returns matching sessions ordered by creation time.
	ListSessions(ctx context.Context, f Filter) ([]*Session, error)
}

// Notifier is the downstream feedback collaborator. It is called once per
// completed session, fire-and-forget.
type Notifier interface {
	NotifyCompleted(ctx context.Context, sessionID string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, sessionID string) error

func (f NotifierFunc) NotifyCompleted(ctx context.Context, sessionID string) error {
	return f(ctx, sessionID)
}
