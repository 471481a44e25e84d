package models

import (
	"time"
)

type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	Name               string
	Roles              []string
	TwoFactorEnabled   bool
	FailedAttempts     int
	LastFailedAt       *time.Time
	LockedUntil        *time.Time
	LastLoginAt        *time.Time
	LastLoginIP        *string
	PasswordChangedAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LockStatus is the AccountLockGate view of a user row.
type LockStatus struct {
	IsLocked       bool
	LockedUntil    *time.Time
	FailedAttempts int
}
