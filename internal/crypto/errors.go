package crypto

import "errors"

var (
	// ErrDecryptFailed is returned when a registry payload does not
	// decrypt to validly padded plaintext. The usual cause is a wrong
	// passphrase producing a wrong key.
	ErrDecryptFailed = errors.New("decryption failed")

	// ErrInvalidKeyLength is returned when a key of the wrong size is
	// supplied to the registry cipher.
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrInvalidSeed is returned when identity key material of the wrong
	// size is supplied.
	ErrInvalidSeed = errors.New("invalid identity seed")
)
