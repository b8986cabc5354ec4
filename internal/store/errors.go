package store

import "errors"

// Sentinel errors returned by blob store methods. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrBlobNotFound is returned when a lookup by content hash matches no
	// stored blob.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInstanceNotFound is returned when no instance record exists for a
	// (creator, instance) pair.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrSettingNotFound is returned when a named setting has never been
	// written.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrInvalidStoreKey is returned when a store is opened with a
	// symmetric key of the wrong size.
	ErrInvalidStoreKey = errors.New("invalid store key length")
)
