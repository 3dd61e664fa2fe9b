package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"gymbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverOTPStore tries the primary (redis) store and falls back to the
// in-memory one when it fails, re-probing the primary after a minute.
// Codes issued during a failover are lost when the process restarts,
// which only forces users to request a new code.
type FailoverOTPStore struct {
	primary   domain.OTPStore
	fallback  domain.OTPStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverOTPStore(primary, fallback domain.OTPStore, logger *zerolog.Logger) *FailoverOTPStore {
	return &FailoverOTPStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverOTPStore) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	if r.primaryUsable() {
		err := r.primary.SaveCode(ctx, email, code, ttl)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SaveCode(ctx, email, code, ttl)
}

func (r *FailoverOTPStore) GetCode(ctx context.Context, email string) (string, error) {
	if r.primaryUsable() {
		code, err := r.primary.GetCode(ctx, email)
		if err == nil || errors.Is(err, ErrCodeNotFound) {
			r.markUp()
			return code, err
		}
		r.markDown(err)
	}
	return r.fallback.GetCode(ctx, email)
}

func (r *FailoverOTPStore) DeleteCode(ctx context.Context, email string) error {
	if r.primaryUsable() {
		err := r.primary.DeleteCode(ctx, email)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.DeleteCode(ctx, email)
}

// primaryUsable reports whether the primary should be tried: either it is
// healthy or a minute has passed since the last failure.
func (r *FailoverOTPStore) primaryUsable() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(r.lastCheck.Load(), 0)
	return time.Since(last) > time.Minute
}

func (r *FailoverOTPStore) markUp() {
	if r.isDown.Load() {
		r.isDown.Store(false)
		r.logger.Info().Msg("primary otp store recovered")
	}
}

func (r *FailoverOTPStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary otp store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().Unix())
}
