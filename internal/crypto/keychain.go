// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// spaceNamespace is the UUIDv5 namespace under which space identifiers are
// derived from public keys. Fixed forever: changing it would change every
// derived space identity.
var spaceNamespace = uuid.MustParse("b39a4861-2e70-4b23-8d1e-7a90c2f5ab10")

// keyChain is the private implementation of [KeyChain].
type keyChain struct {
	// keyLen is the derived key length in bytes. 32 bytes selects
	// AES-256 in the registry cipher.
	keyLen int
}

// NewKeyChain constructs a [KeyChain] producing 256-bit keys.
func NewKeyChain() KeyChain {
	return &keyChain{keyLen: 32}
}

// GenerateSalt implements [KeyChain]. It reads 16 random bytes from the OS
// CSPRNG. Returns an error if the random read fails.
func (k *keyChain) GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// GenerateSymmetricKey implements [KeyChain]. It reads 32 random bytes from
// the OS CSPRNG. Returns an error if the random read fails.
func (k *keyChain) GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSharedSecret implements [KeyChain]. The secret is 32 random bytes
// hex-encoded; it is exchanged out of band between participants and only
// its digest is ever transmitted.
func (k *keyChain) GenerateSharedSecret() (string, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", err
	}
	return hex.EncodeToString(secret), nil
}

// DeriveKey implements [KeyChain] using PBKDF2-HMAC-SHA256.
func (k *keyChain) DeriveKey(passphrase string, salt []byte, iter int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iter, k.keyLen, sha256.New)
}

// NewSpaceIdentity implements [KeyChain]. It generates an ed25519 keypair
// and derives the space identifier from the public key.
func (k *keyChain) NewSpaceIdentity() ([]byte, string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("generate space keypair: %w", err)
	}
	return priv.Seed(), identifierFromPublicKey(pub), nil
}

// IdentityFromSeed implements [KeyChain].
func (k *keyChain) IdentityFromSeed(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return identifierFromPublicKey(pub), nil
}

// SecretHash returns the hex SHA-256 digest of the shared secret. This is
// the only form in which the secret may cross the wire: the remote checks
// compatibility against the digest without ever learning the secret.
func SecretHash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// RecordIV implements [KeyChain]. The IV is the first aes.BlockSize bytes
// of SHA-256 over (name, version, created-in-unix-nanos). Reused across
// saves of the same record; safe only while the key rotates with the salt.
func (k *keyChain) RecordIV(name string, version int, created time.Time) []byte {
	h := sha256.New()
	h.Write([]byte(name))
	_ = binary.Write(h, binary.BigEndian, int64(version))
	_ = binary.Write(h, binary.BigEndian, created.UnixNano())
	sum := h.Sum(nil)
	return sum[:aes.BlockSize]
}

// EncryptRegistryPayload implements [KeyChain] with AES-256-CBC and PKCS#7
// padding.
func (k *keyChain) EncryptRegistryPayload(plain, key, iv []byte) ([]byte, error) {
	block, err := newRegistryCipher(key, iv)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptRegistryPayload implements [KeyChain]. A wrong key produces
// garbage plaintext which fails the padding check, reported as
// [ErrDecryptFailed] rather than silently-wrong data.
func (k *keyChain) DecryptRegistryPayload(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := newRegistryCipher(key, iv)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a block multiple", ErrDecryptFailed, len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}

func newRegistryCipher(key, iv []byte) (cipher.Block, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, want 32", ErrInvalidKeyLength, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrInvalidKeyLength, aes.BlockSize)
	}
	return aes.NewCipher(key)
}

func identifierFromPublicKey(pub ed25519.PublicKey) string {
	return uuid.NewSHA1(spaceNamespace, pub).String()
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}
