package crypto

import "time"

// KeyChain owns all client-side cryptography for spacesync: registry key
// derivation, the registry payload cipher, and space identity material.
// It knows nothing about the network, the blob store, or the registry file
// layout.
//
// Registry scheme:
//
//	salt      = GenerateSalt()
//	key       = DeriveKey(passphrase, salt, iter)
//	iv        = RecordIV(name, version, created)
//	data      = EncryptRegistryPayload(plain, key, iv)
//
// The key is never stored; it is re-derivable from the passphrase plus the
// salt and iteration count recorded next to the ciphertext.
type KeyChain interface {
	// GenerateSalt returns a random 16-byte salt. The salt is not a
	// secret; it is stored in the clear inside the registry record.
	GenerateSalt() ([]byte, error)

	// GenerateSymmetricKey returns a random 32-byte key used as a space's
	// at-rest encryption key.
	GenerateSymmetricKey() ([]byte, error)

	// GenerateSharedSecret returns a random hex-encoded shared secret for
	// a new space. Only its digest (see SecretHash) ever crosses the wire.
	GenerateSharedSecret() (string, error)

	// DeriveKey derives a 32-byte key from passphrase, salt, and iteration
	// count using PBKDF2-HMAC-SHA256.
	DeriveKey(passphrase string, salt []byte, iter int) []byte

	// NewSpaceIdentity generates a fresh keypair and returns the private
	// seed together with the space identifier derived from the public key.
	NewSpaceIdentity() (seed []byte, spaceID string, err error)

	// IdentityFromSeed rebuilds the keypair from seed and returns the
	// identifier derived from its public key. Used to verify imported or
	// joined identities against their claimed identifiers.
	IdentityFromSeed(seed []byte) (string, error)

	// RecordIV derives the fixed per-record initialization vector from the
	// record's static fields. Deterministic: the same record always yields
	// the same IV, so key rotation (via salt rotation) is what prevents
	// key+IV reuse across differing plaintexts.
	RecordIV(name string, version int, created time.Time) []byte

	// EncryptRegistryPayload encrypts plain with AES-256-CBC under key/iv,
	// applying PKCS#7 padding.
	EncryptRegistryPayload(plain, key, iv []byte) ([]byte, error)

	// DecryptRegistryPayload reverses EncryptRegistryPayload. Returns
	// ErrDecryptFailed when the ciphertext does not decrypt to validly
	// padded plaintext (almost always a wrong passphrase or key).
	DecryptRegistryPayload(ciphertext, key, iv []byte) ([]byte, error)
}
