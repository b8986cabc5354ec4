package models

import "time"

// SyncStatus is the progress snapshot a sync engine reports to its owning
// process. Pos/MaxPos are the local watermark and the remote's claimed
// maximum; Pulled/Pushed count blobs transferred since the last idle
// transition.
type SyncStatus struct {
	Working    bool      `json:"working"`
	Pulled     int64     `json:"pulled"`
	Pushed     int64     `json:"pushed"`
	LastSynced time.Time `json:"last_synced"`
	Pos        int64     `json:"pos"`
	MaxPos     int64     `json:"max_pos"`
}
