// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

// Package registry implements the encrypted space registry: a single local
// file indexing every space this device knows about, including each space's
// at-rest symmetric key. The payload is encrypted with a passphrase-derived
// key; the key itself is never stored.
package registry

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncspace/spacesync/internal/crypto"
	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/models"
)

const (
	// minPassphraseLen is the minimum accepted passphrase length.
	minPassphraseLen = 6

	// defaultIterations is the PBKDF2 iteration count written into newly
	// created registry records.
	defaultIterations = 100_000

	// registryName is the record name for freshly created registries. It
	// feeds the deterministic payload IV together with version and
	// creation time.
	registryName = "spaces"
)

// Credentials carries exactly one way to unlock the registry: the
// passphrase itself, or a hex-encoded key previously produced by
// [Registry.DeriveKey] (the "remember me" flow).
type Credentials struct {
	Passphrase string
	DerivedKey string
}

// StoreProvisioner is the blob-store collaborator the registry instructs
// when spaces are created or removed. Implemented by the store package.
type StoreProvisioner interface {
	// Materialize creates and migrates the local store backing entry.
	Materialize(ctx context.Context, entry models.SpaceEntry) error
	// Delete removes the local store file named localDBName.
	Delete(ctx context.Context, localDBName string) error
}

// Registry owns the encrypted space-list file. All mutating operations are
// serialized on an internal mutex because every save performs a
// read-modify-(temp-write)-rename cycle on the same path.
type Registry struct {
	path   string
	keys   crypto.KeyChain
	stores StoreProvisioner
	log    *logger.Logger

	mu sync.Mutex
}

// New constructs a Registry persisted at path.
func New(path string, keys crypto.KeyChain, stores StoreProvisioner, log *logger.Logger) *Registry {
	return &Registry{
		path:   path,
		keys:   keys,
		stores: stores,
		log:    log,
	}
}

// Exists reports whether a registry file is present at the configured path.
func (r *Registry) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Create initializes a fresh registry protected by passphrase. It fails if
// a registry already exists or the passphrase is shorter than six
// characters. The new record carries an empty payload, which is stored
// unencrypted as the empty case.
func (r *Registry) Create(passphrase string) (*models.RegistryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Exists() {
		return nil, ErrRegistryExists
	}
	if len(passphrase) < minPassphraseLen {
		return nil, ErrPassphraseTooShort
	}

	salt, err := r.keys.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate registry salt: %w", err)
	}

	rec := &models.RegistryRecord{
		Version: models.RegistryFormatVersion,
		Name:    registryName,
		Created: time.Now().UTC(),
		Iter:    defaultIterations,
		Salt:    salt,
	}

	if err := r.write(rec); err != nil {
		return nil, err
	}

	r.log.Info().Str("path", r.path).Msg("registry created")
	return rec, nil
}

// Load reads and decrypts the registry. It fails with ErrRegistryNotFound
// when no file exists, and with a decryption error (never silently-wrong
// data) when the credentials are wrong.
func (r *Registry) Load(creds Credentials) (*models.RegistryRecord, *models.RegistryPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(creds)
}

// Save re-encrypts payload into rec and persists it. Records with an
// unsupported format version are rejected.
//
// A passphrase save rotates the salt and re-derives the key, so the fixed
// per-record IV is never reused under the same key for a new plaintext. A
// derived-key save cannot rotate (the passphrase is not available) and
// reuses the recorded salt; callers holding a cached derived key must
// follow up with a passphrase save to rotate it out.
func (r *Registry) Save(rec *models.RegistryRecord, payload *models.RegistryPayload, creds Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(rec, payload, creds)
}

// DeriveKey computes the key for the current record and returns it
// hex-encoded without applying it. Supports callers that cache a derived
// key instead of the raw passphrase.
func (r *Registry) DeriveKey(passphrase string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.read()
	if err != nil {
		return "", err
	}

	key := r.keys.DeriveKey(passphrase, rec.Salt, rec.Iter)
	return hex.EncodeToString(key), nil
}

// AddSpace creates a brand-new space: a fresh identity keypair, a random
// shared secret, and a random 32-byte symmetric key. The blob-store
// collaborator materializes the backing local store before the entry is
// persisted. The first space added becomes the default.
func (r *Registry) AddSpace(ctx context.Context, name string, creds Credentials) (models.SpaceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, spaceID, err := r.keys.NewSpaceIdentity()
	if err != nil {
		return models.SpaceEntry{}, fmt.Errorf("generate space identity: %w", err)
	}

	secret, err := r.keys.GenerateSharedSecret()
	if err != nil {
		return models.SpaceEntry{}, fmt.Errorf("generate shared secret: %w", err)
	}

	return r.addEntry(ctx, name, spaceID, spaceID, secret, creds)
}

// ImportSpace re-creates a space from its private key material. The
// identifier derived from the supplied seed must match claimedUUID;
// anything else is an identity forgery attempt and fails.
func (r *Registry) ImportSpace(ctx context.Context, name string, seed []byte, claimedUUID, sharedSecret string, creds Credentials) (models.SpaceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	derived, err := r.keys.IdentityFromSeed(seed)
	if err != nil {
		return models.SpaceEntry{}, fmt.Errorf("rebuild imported identity: %w", err)
	}
	if derived != claimedUUID {
		return models.SpaceEntry{}, fmt.Errorf("%w: %s", ErrIdentityMismatch, claimedUUID)
	}

	return r.addEntry(ctx, name, claimedUUID, claimedUUID, sharedSecret, creds)
}

// JoinSpace registers participation in a space created by someone else.
// The joiner's own identity is derived from seed and recorded as the
// entry's creator, while spaceUUID names the remote space being joined.
// Joining the same space twice is idempotent.
func (r *Registry) JoinSpace(ctx context.Context, name string, seed []byte, spaceUUID, sharedSecret string, creds Credentials) (models.SpaceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joinerID, err := r.keys.IdentityFromSeed(seed)
	if err != nil {
		return models.SpaceEntry{}, fmt.Errorf("derive joiner identity: %w", err)
	}

	return r.addEntry(ctx, name, spaceUUID, joinerID, sharedSecret, creds)
}

// RemoveSpace deletes the entry identified by (spaceUUID, creatorUUID),
// reassigns or clears the default selector, and instructs the blob-store
// collaborator to delete the backing local store.
func (r *Registry) RemoveSpace(ctx context.Context, spaceUUID, creatorUUID string, creds Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, payload, err := r.load(creds)
	if err != nil {
		return err
	}

	idx := -1
	for i, entry := range payload.Spaces {
		if entry.UUID == spaceUUID && entry.CreatorUUID == creatorUUID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSpaceNotFound
	}

	removed := payload.Spaces[idx]
	payload.Spaces = append(payload.Spaces[:idx], payload.Spaces[idx+1:]...)

	if payload.Default == removed.LocalDBName {
		payload.Default = ""
		if len(payload.Spaces) > 0 {
			payload.Default = payload.Spaces[0].LocalDBName
		}
	}

	if err := r.save(rec, payload, creds); err != nil {
		return err
	}

	if err := r.stores.Delete(ctx, removed.LocalDBName); err != nil {
		return fmt.Errorf("delete local store %s: %w", removed.LocalDBName, err)
	}

	r.log.Info().Str("space", spaceUUID).Msg("space removed from registry")
	return nil
}

// addEntry implements the shared tail of AddSpace/ImportSpace/JoinSpace.
// Caller must hold r.mu.
func (r *Registry) addEntry(ctx context.Context, name, spaceUUID, creatorUUID, sharedSecret string, creds Credentials) (models.SpaceEntry, error) {
	rec, payload, err := r.load(creds)
	if err != nil {
		return models.SpaceEntry{}, err
	}

	// Idempotence guard: re-adding a known (space, creator) pair returns
	// the existing entry instead of duplicating state.
	for _, entry := range payload.Spaces {
		if entry.UUID == spaceUUID && entry.CreatorUUID == creatorUUID {
			return entry, nil
		}
	}

	symKey, err := r.keys.GenerateSymmetricKey()
	if err != nil {
		return models.SpaceEntry{}, fmt.Errorf("generate symmetric key: %w", err)
	}

	entry := models.SpaceEntry{
		Name:         name,
		UUID:         spaceUUID,
		CreatorUUID:  creatorUUID,
		LocalDBName:  fmt.Sprintf("space-%s.db", uuid.NewString()),
		SymmetricKey: symKey,
		SharedSecret: sharedSecret,
		Created:      time.Now().UTC(),
	}

	if err := r.stores.Materialize(ctx, entry); err != nil {
		return models.SpaceEntry{}, fmt.Errorf("materialize local store: %w", err)
	}

	payload.Spaces = append(payload.Spaces, entry)
	if payload.Default == "" {
		payload.Default = entry.LocalDBName
	}

	if err := r.save(rec, payload, creds); err != nil {
		return models.SpaceEntry{}, err
	}

	r.log.Info().Str("space", entry.UUID).Str("name", name).Msg("space added to registry")
	return entry, nil
}

// load reads, verifies, and decrypts the registry. Caller must hold r.mu.
func (r *Registry) load(creds Credentials) (*models.RegistryRecord, *models.RegistryPayload, error) {
	rec, err := r.read()
	if err != nil {
		return nil, nil, err
	}

	payload := &models.RegistryPayload{}
	if len(rec.Data) == 0 {
		// Fresh registry with no spaces yet: stored as the unencrypted
		// empty case.
		return rec, payload, nil
	}

	key, err := r.resolveKey(rec, creds)
	if err != nil {
		return nil, nil, err
	}

	iv := r.keys.RecordIV(rec.Name, rec.Version, rec.Created)
	plain, err := r.keys.DecryptRegistryPayload(rec.Data, key, iv)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt registry payload: %w", err)
	}

	if err := json.Unmarshal(plain, payload); err != nil {
		return nil, nil, fmt.Errorf("decode registry payload: %w", crypto.ErrDecryptFailed)
	}

	return rec, payload, nil
}

// save encrypts payload into rec and writes atomically. Caller must hold r.mu.
func (r *Registry) save(rec *models.RegistryRecord, payload *models.RegistryPayload, creds Credentials) error {
	if rec.Version != models.RegistryFormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
	}

	var key []byte
	switch {
	case creds.Passphrase != "":
		// Salt rotation on every passphrase save: the derived key changes,
		// so the fixed per-record IV is never paired with the same key for
		// a second plaintext.
		salt, err := r.keys.GenerateSalt()
		if err != nil {
			return fmt.Errorf("rotate registry salt: %w", err)
		}
		rec.Salt = salt
		key = r.keys.DeriveKey(creds.Passphrase, rec.Salt, rec.Iter)
	case creds.DerivedKey != "":
		decoded, err := hex.DecodeString(creds.DerivedKey)
		if err != nil {
			return fmt.Errorf("decode derived key: %w", err)
		}
		key = decoded
	default:
		if !payload.Empty() {
			return ErrNoCredentials
		}
	}

	if payload.Empty() {
		rec.Data = nil
		return r.write(rec)
	}

	plain, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode registry payload: %w", err)
	}

	iv := r.keys.RecordIV(rec.Name, rec.Version, rec.Created)
	rec.Data, err = r.keys.EncryptRegistryPayload(plain, key, iv)
	if err != nil {
		return fmt.Errorf("encrypt registry payload: %w", err)
	}

	return r.write(rec)
}

// read parses the record file without decrypting its payload.
func (r *Registry) read() (*models.RegistryRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRegistryNotFound
		}
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	rec := &models.RegistryRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode registry file: %w", err)
	}
	if rec.Version != models.RegistryFormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
	}

	return rec, nil
}

// write persists rec via temp file plus atomic rename, so a crash mid-write
// leaves the previous registry intact.
func (r *Registry) write(rec *models.RegistryRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry record: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write temp file: %v", ErrSaveFailed, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%w: rename temp file: %v", ErrSaveFailed, err)
	}

	return nil
}

// resolveKey produces the payload key from whichever credential was given.
func (r *Registry) resolveKey(rec *models.RegistryRecord, creds Credentials) ([]byte, error) {
	switch {
	case creds.DerivedKey != "":
		key, err := hex.DecodeString(creds.DerivedKey)
		if err != nil {
			return nil, fmt.Errorf("decode derived key: %w", err)
		}
		return key, nil
	case creds.Passphrase != "":
		return r.keys.DeriveKey(creds.Passphrase, rec.Salt, rec.Iter), nil
	default:
		return nil, ErrNoCredentials
	}
}
