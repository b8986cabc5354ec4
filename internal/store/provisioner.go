package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/models"
)

// Provisioner creates and deletes the per-space database files on behalf of
// the registry. It satisfies the registry's StoreProvisioner interface.
type Provisioner struct {
	dataDir string
	logger  *logger.Logger
}

// NewProvisioner constructs a provisioner rooted at dataDir.
func NewProvisioner(dataDir string, log *logger.Logger) *Provisioner {
	return &Provisioner{dataDir: dataDir, logger: log}
}

// Materialize creates and migrates the database backing entry and seeds its
// identity settings. Re-materializing an existing store keeps its instance
// identifier, so repeated space imports stay idempotent.
func (p *Provisioner) Materialize(ctx context.Context, entry models.SpaceEntry) error {
	if err := os.MkdirAll(p.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := Open(ctx, filepath.Join(p.dataDir, entry.LocalDBName), p.logger)
	if err != nil {
		return fmt.Errorf("open space database: %w", err)
	}
	defer db.Close()

	bs, err := NewBlobStore(db, entry.SymmetricKey, p.logger)
	if err != nil {
		return err
	}

	if _, err := bs.GetSetting(ctx, SettingInstanceID); errors.Is(err, ErrSettingNotFound) {
		if err := bs.SetSetting(ctx, SettingInstanceID, uuid.NewString()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	seeds := map[string]string{
		SettingSpaceID:      entry.UUID,
		SettingCreatorID:    entry.CreatorUUID,
		SettingSharedSecret: entry.SharedSecret,
	}
	for key, value := range seeds {
		if err := bs.SetSetting(ctx, key, value); err != nil {
			return err
		}
	}

	p.logger.Info().
		Str("space", entry.UUID).
		Str("db", entry.LocalDBName).
		Msg("space store materialized")
	return nil
}

// OpenStore opens the blob store backing entry for exclusive use by a sync
// engine. The caller owns the returned handle and must Close it.
func (p *Provisioner) OpenStore(ctx context.Context, entry models.SpaceEntry) (BlobStore, error) {
	db, err := Open(ctx, filepath.Join(p.dataDir, entry.LocalDBName), p.logger)
	if err != nil {
		return nil, fmt.Errorf("open space database: %w", err)
	}

	bs, err := NewBlobStore(db, entry.SymmetricKey, p.logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return bs, nil
}

// Delete removes the database file backing a space. Deleting a store that
// never existed is a no-op.
func (p *Provisioner) Delete(_ context.Context, localDBName string) error {
	err := os.Remove(filepath.Join(p.dataDir, localDBName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete space database: %w", err)
	}
	return nil
}
