package service

import "errors"

var (
	// ErrAlreadySyncing is returned when a space that already has a
	// running syncer is started again.
	ErrAlreadySyncing = errors.New("space is already syncing")

	// ErrNotSyncing is returned when an operation targets a space with no
	// running syncer.
	ErrNotSyncing = errors.New("space is not syncing")
)
