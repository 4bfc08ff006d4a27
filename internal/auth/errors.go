package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoSuchPrincipal       = errors.New("no such principal")
	ErrAccountDisabled       = errors.New("account disabled")
	ErrAccountLocked         = errors.New("account locked")
	ErrBadCredentials        = errors.New("bad credentials")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenNotFound         = errors.New("refresh token not found")
	ErrDeviceMismatch        = errors.New("refresh token device mismatch")
	ErrStoreUnavailable      = errors.New("store unavailable")
)

// AccountLockedError reports how long the caller has to wait. It matches
// ErrAccountLocked with errors.Is.
type AccountLockedError struct {
	Until      time.Time
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// BadCredentialsError reports how many failures remain before the next lock.
type BadCredentialsError struct {
	AttemptsLeft int
}

func (e *BadCredentialsError) Error() string {
	return fmt.Sprintf("bad credentials, %d attempts left", e.AttemptsLeft)
}

func (e *BadCredentialsError) Is(target error) bool {
	return target == ErrBadCredentials
}

// Unavailable wraps a backing store failure so callers can match
// ErrStoreUnavailable while keeping the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
