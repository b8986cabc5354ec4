package models

import "time"

// SpaceEntry is one known space inside the decrypted registry payload.
//
// UUID is the space identity (derived from the creator's public key) and
// CreatorUUID is the identity of the local participant. For spaces created
// or imported locally the two are equal; for joined spaces UUID belongs to
// the remote creator while CreatorUUID is the joiner's own identifier.
type SpaceEntry struct {
	Name         string    `json:"name"`
	UUID         string    `json:"uuid"`
	CreatorUUID  string    `json:"creator_uuid"`
	LocalDBName  string    `json:"local_db_name"`
	SymmetricKey []byte    `json:"symmetric_key"`
	SharedSecret string    `json:"shared_secret"`
	Created      time.Time `json:"created"`
}

// RegistryPayload is the plaintext structure protected by the registry
// cipher: the list of known spaces plus the default space selector.
// Default holds the LocalDBName of one entry in Spaces, or is empty. The
// space UUID cannot serve as the selector because an imported and a joined
// entry of the same space share it; LocalDBName is unique per entry.
type RegistryPayload struct {
	Spaces  []SpaceEntry `json:"spaces"`
	Default string       `json:"default,omitempty"`
}

// Empty reports whether the payload carries no state at all. A fresh
// registry with an empty payload is stored unencrypted as the empty case.
func (p *RegistryPayload) Empty() bool {
	return p == nil || (len(p.Spaces) == 0 && p.Default == "")
}
