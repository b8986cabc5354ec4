package store

import (
	"context"
	"time"

	"github.com/syncspace/spacesync/models"
)

// Setting keys for the small named strings a space database carries next to
// its blob log.
const (
	SettingSpaceID      = "space_id"
	SettingCreatorID    = "creator_id"
	SettingInstanceID   = "instance_id"
	SettingSharedSecret = "shared_secret"
	SettingDeviceToken  = "device_token"
	SettingDeviceType   = "device_type"

	// SettingLastSyncedPrefix prefixes per-instance last-synced
	// timestamps: "last_synced:<instance-id>".
	SettingLastSyncedPrefix = "last_synced:"
)

// BlobStore is the content-addressed append log backing one space, plus the
// instance and settings bookkeeping the sync protocol needs. One store
// handle is exclusively owned by one sync engine at a time.
type BlobStore interface {
	// HasBlob reports whether a blob with the given content hash exists.
	HasBlob(ctx context.Context, hash string) (bool, error)

	// FindBlob returns the blob with the given content hash, payload
	// decrypted. Returns ErrBlobNotFound if absent.
	FindBlob(ctx context.Context, hash string) (models.Blob, error)

	// AppendBlob appends locally produced content and returns the stored
	// blob with its assigned position.
	AppendBlob(ctx context.Context, payload []byte) (models.Blob, error)

	// AppendBlobFromRemote appends a blob pulled from sourceInstanceID,
	// deduplicating by content hash: re-appending known content is a
	// no-op returning the existing position.
	AppendBlobFromRemote(ctx context.Context, blob models.Blob, sourceInstanceID string) (int64, error)

	// ListPushableSince returns references to blobs appended after pos
	// that did not originate from instanceID, in ascending position order.
	ListPushableSince(ctx context.Context, pos int64, instanceID string) ([]models.BlobRef, error)

	// MaxLocalBlobID returns the highest position in the log, or zero for
	// an empty log.
	MaxLocalBlobID(ctx context.Context) (int64, error)

	// GetInstance looks up the instance record for a (creator, instance)
	// pair. Returns ErrInstanceNotFound if absent.
	GetInstance(ctx context.Context, creatorID, instanceID string) (models.Instance, error)

	// RegisterInstance creates the instance record for a newly seen
	// partner, with a zero watermark.
	RegisterInstance(ctx context.Context, creatorID, instanceID string, ts time.Time) (models.Instance, error)

	// SaveInstancePosition durably advances the watermark for an instance.
	SaveInstancePosition(ctx context.Context, pos int64, creatorID, instanceID string) error

	// GetSetting returns a named string. Returns ErrSettingNotFound if the
	// key was never written.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting writes a named string, replacing any previous value.
	SetSetting(ctx context.Context, key, value string) error

	// Close releases the underlying database handle.
	Close() error
}
