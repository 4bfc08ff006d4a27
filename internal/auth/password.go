package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const DefaultHashCost = 10

// Hasher hashes and verifies passwords with bcrypt. The number of hashing
// operations running at once is bounded so a login burst cannot starve
// the request goroutines of CPU.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	// dummy is compared against when the principal does not exist so the
	// response time does not reveal whether the identifier is known.
	dummy []byte
}

func NewHasher(cost, maxConcurrent int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultHashCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("sitefolio-timing-equalizer"), cost)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		cost:  cost,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
		dummy: dummy,
	}, nil
}

func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hashed. bcrypt compares in
// constant time; a malformed hash is reported as a mismatch.
func (h *Hasher) Verify(ctx context.Context, plaintext, hashed string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)); err != nil {
		return false, nil
	}
	return true, nil
}

// Burn spends the same work as a real verification and always fails.
func (h *Hasher) Burn(ctx context.Context, plaintext string) {
	_, _ = h.Verify(ctx, plaintext, string(h.dummy))
}
