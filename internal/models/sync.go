package models

import "time"

// SyncState is the persistence state shown to the user
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncPending SyncState = "pending"
	SyncSaving  SyncState = "saving"
	SyncSaved   SyncState = "saved"
	SyncFailed  SyncState = "failed"
)

// SyncStatus reports the outcome of the most recent save and whether more
// changes are waiting to be written.
type SyncStatus struct {
	State       SyncState  `json:"state"`
	Pending     bool       `json:"pending"`
	LastError   string     `json:"last_error,omitempty"`
	LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
}
