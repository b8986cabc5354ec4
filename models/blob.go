package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Blob is one entry in a space's append-only, content-addressed log.
// ID is the log-local position: for any two blobs in the same log, the
// greater ID was appended later. Hash uniquely determines Payload and is
// used for dedup when the same content arrives from multiple sources.
type Blob struct {
	ID             int64     `json:"id"`
	Hash           string    `json:"hash"`
	Payload        []byte    `json:"payload"`
	SourceInstance string    `json:"source_instance,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// BlobRef is the {position, content hash} pair exchanged during cursor
// negotiation. It identifies a blob without carrying its payload.
type BlobRef struct {
	ID   int64  `json:"id"`
	Hash string `json:"hash"`
}

// ComputeBlobHash returns the hex SHA-256 digest of payload. All blob
// hashes in the system are produced by this function.
func ComputeBlobHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
