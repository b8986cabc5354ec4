package service

import (
	"context"

	"github.com/syncspace/spacesync/internal/store"
	"github.com/syncspace/spacesync/models"
)

// Conn is the established protocol channel a syncer drives. Satisfied by
// the transport package's websocket connection.
type Conn interface {
	Send(msg models.Message) error
	Receive(ctx context.Context) (models.Message, error)
	Close() error
}

// Dialer opens a connection to the remote sync host.
type Dialer func(ctx context.Context) (Conn, error)

// StoreOpener opens the blob store backing a registry entry. Satisfied by
// the store package's Provisioner.
type StoreOpener interface {
	OpenStore(ctx context.Context, entry models.SpaceEntry) (store.BlobStore, error)
}
