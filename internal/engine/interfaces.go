package engine

import (
	"context"
	"time"

	"github.com/syncspace/spacesync/models"
)

// BlobStore is the slice of the space store contract the engine needs:
// content lookup, append-from-remote, push discovery and the durable
// instance watermark. internal/store satisfies it.
type BlobStore interface {
	HasBlob(ctx context.Context, hash string) (bool, error)
	FindBlob(ctx context.Context, hash string) (models.Blob, error)
	AppendBlobFromRemote(ctx context.Context, blob models.Blob, sourceInstanceID string) (int64, error)
	ListPushableSince(ctx context.Context, pos int64, instanceID string) ([]models.BlobRef, error)
	MaxLocalBlobID(ctx context.Context) (int64, error)
	GetInstance(ctx context.Context, creatorID, instanceID string) (models.Instance, error)
	RegisterInstance(ctx context.Context, creatorID, instanceID string, ts time.Time) (models.Instance, error)
	SaveInstancePosition(ctx context.Context, pos int64, creatorID, instanceID string) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Sender delivers outbound protocol messages to the remote host over an
// established, ordered channel.
type Sender interface {
	Send(msg models.Message) error
}

// Reporter receives progress snapshots from the engine. It must not call
// back into the engine.
type Reporter func(status models.SyncStatus)
