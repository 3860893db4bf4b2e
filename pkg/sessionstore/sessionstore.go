// Package sessionstore implements interview.Store backends.
//
// KV keeps msgpack-encoded records in a kv.Store (memory or BadgerDB).
// SQLite keeps one row per session.
package sessionstore

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/kv"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Store is an interview.Store that owns resources.
type Store interface {
	interview.Store
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the creation-time clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs overrides session id generation.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns the store for backend. path is the badger directory or the
// sqlite DSN and is ignored for memory.
func Open(backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewKV(kv.NewMemory(nil), opts...), nil
	case BackendBadger:
		db, err := kv.NewBadger(kv.BadgerOptions{Dir: path})
		if err != nil {
			return nil, fmt.Errorf("sessionstore: open badger: %w", err)
		}
		return NewKV(db, opts...), nil
	case BackendSQLite:
		return NewSQLite(path, opts...)
	default:
		return nil, fmt.Errorf("sessionstore: unknown backend %q", backend)
	}
}

func sortByCreation(sessions []*interview.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
