package model

import "time"

type SecurityEventType string

const (
	EventAccountLocked   SecurityEventType = "account_locked"
	EventRefreshReplay   SecurityEventType = "refresh_device_mismatch"
	EventAccountUnlocked SecurityEventType = "account_unlocked"
)

// SecurityEvent is an operator-facing notice. It never carries device
// fingerprints or the principal's risk level.
type SecurityEvent struct {
	Type       SecurityEventType
	Kind       Kind
	PublicID   string
	IP         string
	LockedFor  time.Duration
	OccurredAt time.Time
}
