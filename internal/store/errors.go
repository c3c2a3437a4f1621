package store

import "errors"

var (
	// ErrConflict reports that an update carried a stale revision: someone
	// else wrote the record since the caller last read it.
	ErrConflict = errors.New("revision conflict")

	// ErrDecode reports a malformed stored document. Decoding fails closed:
	// a record with an unknown point type or missing identity is an error,
	// never silently defaulted.
	ErrDecode = errors.New("malformed document")
)
