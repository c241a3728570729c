package docstore

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrAbsent is returned when nothing is stored at a path.
	ErrAbsent = errors.New("no value at path")

	// ErrUnavailable wraps failures of the underlying database.
	ErrUnavailable = errors.New("document store unavailable")

	// ErrVersionConflict is returned by CompareAndSwap when the stored version moved on.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrInvalidPath is returned for malformed paths.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidValue is returned when a written value is not valid JSON
	// or does not fit the addressed location.
	ErrInvalidValue = errors.New("invalid value")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// isBusy reports whether err is a transient lock failure worth retrying.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
