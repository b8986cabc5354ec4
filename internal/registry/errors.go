package registry

import "errors"

// Sentinel errors returned by registry operations. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrRegistryExists is returned by Create when a registry file already
	// exists at the configured path.
	ErrRegistryExists = errors.New("registry already exists")

	// ErrRegistryNotFound is returned by Load when no registry file exists.
	ErrRegistryNotFound = errors.New("registry not found")

	// ErrPassphraseTooShort is returned by Create when the passphrase is
	// shorter than the required minimum.
	ErrPassphraseTooShort = errors.New("passphrase is too short")

	// ErrUnsupportedVersion is returned when a record carries a format
	// version this build does not understand.
	ErrUnsupportedVersion = errors.New("unsupported registry format version")

	// ErrNoCredentials is returned when neither a passphrase nor a
	// pre-derived key was supplied for an operation that needs one.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrIdentityMismatch is returned when supplied key material does not
	// derive the claimed space identifier. Guards against identity forgery
	// on import.
	ErrIdentityMismatch = errors.New("derived identifier does not match claimed identifier")

	// ErrSpaceNotFound is returned when a mutation targets a space entry
	// that is not present in the registry.
	ErrSpaceNotFound = errors.New("space not found in registry")

	// ErrSaveFailed is returned when the atomic temp-write-and-rename of
	// the registry file fails. The previous file is left intact.
	ErrSaveFailed = errors.New("registry save failed")
)
