package metastore

import (
	"errors"
	"fmt"

	"github.com/metalens/metalens/internal/storage"
)

var (
	// ErrNotFound: a required file or object is absent.
	ErrNotFound = errors.New("metastore: not found")

	// ErrNoFilesFound: a dataset-style scan matched zero objects.
	ErrNoFilesFound = errors.New("metastore: no files found")

	// ErrStorageUnavailable: the storage backend is unreachable or rejected
	// the credentials.
	ErrStorageUnavailable = errors.New("metastore: storage unavailable")

	// ErrMalformedMetadata: a required structure could not be parsed into
	// the expected shape.
	ErrMalformedMetadata = errors.New("metastore: malformed metadata")
)

// Error is the format-scoped failure every analyzer returns. There is no
// partial success for a hard failure; the original cause is reachable with
// errors.Is / errors.As through Unwrap.
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analyze %s table: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func analyzeError(format Format, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Format: format, Err: err}
}

// translateStorageErr lifts storage sentinels into the metastore error
// taxonomy while keeping the original message.
func translateStorageErr(err error, context string) error {
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, context)
	case errors.Is(err, storage.ErrUnavailable):
		return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, context, err)
	default:
		return fmt.Errorf("%s: %w", context, err)
	}
}
