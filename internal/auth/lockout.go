package auth

import (
	"time"
)

const (
	DefaultLockThreshold    = 5
	DefaultBaseLockDuration = 30 * time.Minute

	// MaxFailedAttempts bounds the stored failure counter.
	MaxFailedAttempts = 10

	// 2^20 * 30m is ~60 years, still far below time.Duration's range.
	maxRiskShift = 20
)

// LockState is the lockout-relevant part of a principal record.
type LockState struct {
	FailedAttempts int
	RiskLevel      int
	LockUntil      *time.Time
}

// LockoutPolicy decides how failed logins lock an account. Lock state is
// derived from LockUntil and the current time; there is no separate flag.
type LockoutPolicy struct {
	Threshold    int
	BaseDuration time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold:    DefaultLockThreshold,
		BaseDuration: DefaultBaseLockDuration,
	}
}

// Locked reports whether s is locked at now and for how much longer.
func (p LockoutPolicy) Locked(s LockState, now time.Time) (bool, time.Duration) {
	if s.LockUntil == nil || !now.Before(*s.LockUntil) {
		return false, 0
	}
	return true, s.LockUntil.Sub(now)
}

// LockDuration is 2^riskLevel * BaseDuration.
func (p LockoutPolicy) LockDuration(riskLevel int) time.Duration {
	if riskLevel < 0 {
		riskLevel = 0
	}
	if riskLevel > maxRiskShift {
		riskLevel = maxRiskShift
	}
	return p.base() << uint(riskLevel)
}

// Failure applies one failed attempt. The returned error is either a
// *BadCredentialsError or, when this failure crossed the threshold, an
// *AccountLockedError.
func (p LockoutPolicy) Failure(s LockState, now time.Time) (LockState, error) {
	next := s
	if next.FailedAttempts < MaxFailedAttempts {
		next.FailedAttempts++
	}

	if next.FailedAttempts >= p.threshold() {
		until := now.Add(p.LockDuration(next.RiskLevel))
		next.LockUntil = &until
		next.RiskLevel++
		return next, &AccountLockedError{Until: until, RetryAfter: until.Sub(now)}
	}

	return next, &BadCredentialsError{AttemptsLeft: p.threshold() - next.FailedAttempts}
}

// Success clears the failure counter. RiskLevel is kept so an account that
// was locked before locks for longer next time.
func (p LockoutPolicy) Success(s LockState) LockState {
	next := s
	next.FailedAttempts = 0
	return next
}

func (p LockoutPolicy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultLockThreshold
	}
	return p.Threshold
}

func (p LockoutPolicy) base() time.Duration {
	if p.BaseDuration <= 0 {
		return DefaultBaseLockDuration
	}
	return p.BaseDuration
}
