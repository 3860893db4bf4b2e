// Package storage keeps archived interview artifacts: the final transcript
// of each session and the candidate audio of each turn-based turn.
//
// Objects are small and written once, so the API moves whole byte slices.
// Paths are forward-slash separated and relative to the store root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FileStore stores archive objects. Implementations are safe for
// concurrent use.
type FileStore interface {
	// Put stores data at path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte) error

	// Get returns the object at path. A missing object is an error
	// wrapping os.ErrNotExist.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the object at path. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, path string) error
}

// IsNotExist reports whether err means the object does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// Open returns the store for an archive location:
//
//	local:<dir>            files under dir
//	<dir>                  same as local:<dir>
//	s3://<bucket>[/prefix] objects in an S3-compatible bucket
//
// opts is only used for S3 locations.
func Open(location string, opts S3Options) (FileStore, error) {
	switch {
	case location == "":
		return nil, errors.New("storage: empty archive location")
	case strings.HasPrefix(location, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("storage: no bucket in %q", location)
		}
		return NewS3(NewS3Client(opts), bucket, strings.Trim(prefix, "/")), nil
	case strings.HasPrefix(location, "local:"):
		return NewLocal(strings.TrimPrefix(location, "local:"))
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("storage: unsupported archive location %q", location)
	default:
		return NewLocal(location)
	}
}
