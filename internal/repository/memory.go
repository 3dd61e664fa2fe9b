package repository

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCodeNotFound is returned when no live code exists for the email.
var ErrCodeNotFound = errors.New("otp code not found")

// MemoryOTPStore keeps issued codes in process memory. Used standalone in
// tests and as the failover target when redis is unavailable.
type MemoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
}

type memoryCode struct {
	code      string
	expiresAt time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{codes: make(map[string]memoryCode)}
}

func (r *MemoryOTPStore) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[email] = memoryCode{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (r *MemoryOTPStore) GetCode(ctx context.Context, email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.codes[email]
	if !ok {
		return "", ErrCodeNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(r.codes, email)
		return "", ErrCodeNotFound
	}
	return entry.code, nil
}

func (r *MemoryOTPStore) DeleteCode(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, email)
	return nil
}
