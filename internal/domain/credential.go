package domain

import "time"

// InactivityCeiling is how long a credential stays live without activity.
const InactivityCeiling = 30 * time.Minute

// Liveness is a read-only view of the stored credential used for diagnostics.
type Liveness struct {
	HasToken     bool       `json:"has_token"`
	HasUser      bool       `json:"has_user"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	Idle         string     `json:"idle,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Live         bool       `json:"live"`
}
