package storage

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound is returned when a requested key or file does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrUnavailable is returned when the backend cannot be reached or the
	// supplied credentials are rejected.
	ErrUnavailable = errors.New("storage unavailable")
)

type ObjectInfo struct {
	Key  string
	Size int64
}

// Accessor is the uniform read-only view the analyzers use for both local
// directories and object-store buckets. Keys are slash-separated. List
// returns descriptors in the backend's listing order, which is not
// guaranteed to be sorted.
type Accessor interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}
