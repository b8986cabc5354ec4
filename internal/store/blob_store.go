// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/models"
)

// blobStore is the SQLite-backed implementation of [BlobStore]. Payloads
// are encrypted at rest with the space's symmetric key (AES-256-GCM, random
// nonce prepended to the ciphertext); content hashes are computed over the
// plaintext so that the same content addresses identically on every device.
type blobStore struct {
	db     *DB
	aead   cipher.AEAD
	logger *logger.Logger
}

// NewBlobStore wraps db with at-rest encryption under the space's 32-byte
// symmetric key.
func NewBlobStore(db *DB, symmetricKey []byte, log *logger.Logger) (BlobStore, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, want 32", ErrInvalidStoreKey, len(symmetricKey))
	}

	block, err := aes.NewCipher(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("create store cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create store gcm: %w", err)
	}

	return &blobStore{db: db, aead: aead, logger: log}, nil
}

func (s *blobStore) HasBlob(ctx context.Context, hash string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, selectBlobIDByHash, hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query blob by hash: %w", err)
	}
	return true, nil
}

func (s *blobStore) FindBlob(ctx context.Context, hash string) (models.Blob, error) {
	var blob models.Blob
	var sealed []byte
	err := s.db.QueryRowContext(ctx, selectBlobByHash, hash).
		Scan(&blob.ID, &blob.Hash, &sealed, &blob.SourceInstance, &blob.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Blob{}, ErrBlobNotFound
	}
	if err != nil {
		return models.Blob{}, fmt.Errorf("query blob by hash: %w", err)
	}

	blob.Payload, err = s.open(sealed)
	if err != nil {
		return models.Blob{}, fmt.Errorf("decrypt blob %s: %w", hash, err)
	}
	return blob, nil
}

func (s *blobStore) AppendBlob(ctx context.Context, payload []byte) (models.Blob, error) {
	blob := models.Blob{
		Hash:      models.ComputeBlobHash(payload),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	id, err := s.insert(ctx, blob, "")
	if err != nil {
		return models.Blob{}, err
	}
	blob.ID = id
	return blob, nil
}

func (s *blobStore) AppendBlobFromRemote(ctx context.Context, blob models.Blob, sourceInstanceID string) (int64, error) {
	// Dedup by hash: the same content may be offered by multiple sources.
	var existing int64
	err := s.db.QueryRowContext(ctx, selectBlobIDByHash, blob.Hash).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query blob by hash: %w", err)
	}

	blob.CreatedAt = time.Now().UTC()
	return s.insert(ctx, blob, sourceInstanceID)
}

func (s *blobStore) ListPushableSince(ctx context.Context, pos int64, instanceID string) ([]models.BlobRef, error) {
	query, args, err := pushableSinceQuery(pos, instanceID)
	if err != nil {
		return nil, fmt.Errorf("build pushable query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pushable blobs: %w", err)
	}
	defer rows.Close()

	var refs []models.BlobRef
	for rows.Next() {
		var ref models.BlobRef
		if err := rows.Scan(&ref.ID, &ref.Hash); err != nil {
			return nil, fmt.Errorf("scan pushable blob row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pushable blob rows: %w", err)
	}

	return refs, nil
}

func (s *blobStore) MaxLocalBlobID(ctx context.Context) (int64, error) {
	var maxID int64
	if err := s.db.QueryRowContext(ctx, selectMaxBlobID).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("query max blob id: %w", err)
	}
	return maxID, nil
}

func (s *blobStore) GetInstance(ctx context.Context, creatorID, instanceID string) (models.Instance, error) {
	var inst models.Instance
	err := s.db.QueryRowContext(ctx, selectInstance, creatorID, instanceID).
		Scan(&inst.CreatorID, &inst.InstanceID, &inst.RemotePos, &inst.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Instance{}, ErrInstanceNotFound
	}
	if err != nil {
		return models.Instance{}, fmt.Errorf("query instance: %w", err)
	}
	return inst, nil
}

func (s *blobStore) RegisterInstance(ctx context.Context, creatorID, instanceID string, ts time.Time) (models.Instance, error) {
	if _, err := s.db.ExecContext(ctx, insertInstance, creatorID, instanceID, ts); err != nil {
		return models.Instance{}, fmt.Errorf("register instance %s: %w", instanceID, err)
	}

	s.logger.Debug().
		Str("creator_id", creatorID).
		Str("instance_id", instanceID).
		Msg("registered new sync instance")

	return models.Instance{
		CreatorID:    creatorID,
		InstanceID:   instanceID,
		RemotePos:    0,
		RegisteredAt: ts,
	}, nil
}

func (s *blobStore) SaveInstancePosition(ctx context.Context, pos int64, creatorID, instanceID string) error {
	res, err := s.db.ExecContext(ctx, updateInstancePosition, pos, creatorID, instanceID)
	if err != nil {
		return fmt.Errorf("save instance position: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save instance position: %w", err)
	}
	if affected == 0 {
		return ErrInstanceNotFound
	}
	return nil
}

func (s *blobStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, selectSetting, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query setting %s: %w", key, err)
	}
	return value, nil
}

func (s *blobStore) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertSetting, key, value); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *blobStore) Close() error {
	return s.db.Close()
}

func (s *blobStore) insert(ctx context.Context, blob models.Blob, sourceInstanceID string) (int64, error) {
	sealed, err := s.seal(blob.Payload)
	if err != nil {
		return 0, fmt.Errorf("encrypt blob %s: %w", blob.Hash, err)
	}

	res, err := s.db.ExecContext(ctx, insertBlob, blob.Hash, sealed, sourceInstanceID, blob.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("append blob %s: %w", blob.Hash, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append blob %s: %w", blob.Hash, err)
	}
	return id, nil
}

// seal encrypts a payload for storage: nonce ‖ ciphertext.
func (s *blobStore) seal(payload []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return append(nonce, s.aead.Seal(nil, nonce, payload, nil)...), nil
}

// open reverses seal.
func (s *blobStore) open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ct := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, ct, nil)
}
