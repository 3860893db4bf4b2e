// Package kv is the key-value layer under the session record store. Keys
// are hierarchical paths such as {"session", "<id>"}, encoded with a
// separator byte (default ':').
//
// Memory backs tests and throwaway runs; Badger persists to disk.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// ErrSkip may be returned by an UpdateFunc to leave the value unchanged.
var ErrSkip = errors.New("kv: skip update")

// Key is a hierarchical path. Segments must not contain the separator.
type Key []string

// String joins the key with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// UpdateFunc computes a new value from the current one. found is false when
// the key does not exist. Returning ErrSkip leaves the store untouched; any
// other error aborts the update and is returned by Update.
type UpdateFunc func(old []byte, found bool) ([]byte, error)

// Store is a key-value store with path keys.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Update atomically replaces the value under key with fn's result.
	// No other write to key interleaves between the read and the write.
	Update(ctx context.Context, key Key, fn UpdateFunc) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List yields entries under prefix in lexicographic key order.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	Close() error
}

// DefaultSeparator joins key segments when none is configured.
const DefaultSeparator byte = ':'

// Options configures key encoding. A nil *Options uses the defaults.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode panics if a segment contains the separator; such a key could not
// be decoded back.
func (o *Options) encode(k Key) []byte {
	sep := string(o.sep())
	for _, seg := range k {
		if strings.Contains(seg, sep) {
			panic(fmt.Sprintf("kv: key segment %q contains separator %q", seg, sep))
		}
	}
	return []byte(strings.Join(k, sep))
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), string(o.sep())))
}

// prefixBytes returns the encoded prefix followed by the separator, so that
// {"ab"} does not match {"abc", ...}. An empty prefix matches everything.
func (o *Options) prefixBytes(prefix Key) []byte {
	if len(prefix) == 0 {
		return nil
	}
	return append(o.encode(prefix), o.sep())
}
