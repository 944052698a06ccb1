package models

import "errors"

var (
	// ErrSourceUnreadable is returned when the document directory is missing or cannot be parsed.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrStoreUnavailable is returned when the persisted store cannot be opened or read.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrWriteFailure is returned when a batch insert fails, fully or partially.
	ErrWriteFailure = errors.New("write failure")
	// ErrQueryFailure is returned when similarity search or inference fails.
	ErrQueryFailure = errors.New("query failure")
	// ErrDuplicateChunkID is returned when one batch carries the same id twice.
	ErrDuplicateChunkID = errors.New("duplicate chunk id")
	// ErrMissingChunkID is returned when a chunk reaches the store without an id.
	ErrMissingChunkID = errors.New("missing chunk id")
)
