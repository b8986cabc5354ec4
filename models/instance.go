package models

import "time"

// Instance is one synchronization partner of a space: a specific device or
// process identified by InstanceID, scoped to the space creator CreatorID.
//
// RemotePos is the durable watermark: the highest position known to be
// fully synced with this instance. It is advanced only after the
// corresponding blob has been durably stored, or after a no-op exchange
// confirmed there is nothing new below it.
type Instance struct {
	InstanceID   string    `json:"instance_id"`
	CreatorID    string    `json:"creator_id"`
	RemotePos    int64     `json:"remote_pos"`
	RegisteredAt time.Time `json:"registered_at"`
}
