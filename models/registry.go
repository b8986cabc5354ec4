package models

import "time"

// RegistryFormatVersion is the only registry record format currently
// understood. Saving a record with any other version fails.
const RegistryFormatVersion = 1

// RegistryRecord is the on-disk form of the space registry: an encrypted
// index of all known spaces and their keys.
//
// The encryption key is never stored. It is derivable only from a
// passphrase together with Salt and Iter, or supplied directly as a
// pre-derived key by a caller that cached one.
type RegistryRecord struct {
	Version int       `json:"version"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
	Iter    int       `json:"iter"`
	Salt    []byte    `json:"salt"`
	Data    []byte    `json:"data,omitempty"`
}
