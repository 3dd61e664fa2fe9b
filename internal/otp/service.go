package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrCodeMismatch = errors.New("otp code does not match")
	ErrCodeExpired  = errors.New("otp code expired or not issued")
)

// Service issues and validates one-time passcodes. Issuance goes through
// the rate limiter first; issued codes live in the OTP store with a TTL.
type Service struct {
	limiter  *RateLimiter
	store    domain.OTPStore
	delivery domain.Delivery
	codeTTL  time.Duration
	logger   *zerolog.Logger
}

func NewService(limiter *RateLimiter, store domain.OTPStore, delivery domain.Delivery, codeTTL time.Duration, logger *zerolog.Logger) *Service {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	return &Service{
		limiter:  limiter,
		store:    store,
		delivery: delivery,
		codeTTL:  codeTTL,
		logger:   logger,
	}
}

// Issue requests a new passcode for email. Returns the rate limiter error
// unchanged so the boundary can report the remaining wait.
func (s *Service) Issue(ctx context.Context, email string) error {
	if err := s.limiter.CheckAndRecord(email); err != nil {
		return err
	}

	code := uuid.NewString()
	if err := s.store.SaveCode(ctx, email, code, s.codeTTL); err != nil {
		return fmt.Errorf("save otp code: %w", err)
	}

	subject := "Код для входа"
	body := fmt.Sprintf("Ваш код для входа: %s. Код действует %d минут.", code, int(s.codeTTL.Minutes()))
	if err := s.delivery.Send(ctx, email, subject, body); err != nil {
		// Код остается в хранилище: пользователь может запросить повтор
		s.logger.Error().Err(err).Str("email", email).Msg("otp delivery failed")
		return fmt.Errorf("send otp code: %w", err)
	}

	s.logger.Info().Str("email", email).Msg("otp issued")
	return nil
}

// Validate checks the presented code and consumes it on success.
func (s *Service) Validate(ctx context.Context, email, code string) error {
	stored, err := s.store.GetCode(ctx, email)
	if err != nil {
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeMismatch
	}
	if err := s.store.DeleteCode(ctx, email); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("delete otp code failed")
	}
	return nil
}
