package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/database"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/models"

	"github.com/rs/zerolog"
)

// RatingService gates rating submission to the window after a session ends:
// one rating per booking, accepted between session end and end + window.
type RatingService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	clock    domain.Clock
	logger   *zerolog.Logger
	window   time.Duration

	submitLocks keyedMutex
}

func NewRatingService(repo domain.Repository, eventBus domain.EventPublisher, clock domain.Clock, window time.Duration, logger *zerolog.Logger) *RatingService {
	if window <= 0 {
		window = models.RatingWindowHours * time.Hour
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &RatingService{
		repo:     repo,
		eventBus: eventBus,
		clock:    clock,
		logger:   logger,
		window:   window,
	}
}

// Submit validates the caller, the window and uniqueness, then persists the
// rating. The AlreadyRated check and the insert run under a per-booking lock;
// the unique index on booking_id backs the critical section up.
func (s *RatingService) Submit(ctx context.Context, userID, bookingID int64, score int, comment string) (*models.Rating, error) {
	if score < models.MinScore || score > models.MaxScore {
		return nil, ErrInvalidScore
	}

	unlock := s.submitLocks.lock(fmt.Sprintf("rating:%d", bookingID))
	defer unlock()

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrForbidden
	}

	now := s.clock.Now()
	sessionEnd := booking.SessionEnd()
	if now.Before(sessionEnd) {
		return nil, ErrTooEarly
	}
	if now.After(sessionEnd.Add(s.window)) {
		return nil, ErrWindowExpired
	}

	if _, err := s.repo.GetRatingByBooking(ctx, bookingID); err == nil {
		return nil, ErrAlreadyRated
	} else if !errors.Is(err, database.ErrRatingNotFound) {
		return nil, err
	}

	rating := &models.Rating{
		UserID:    userID,
		BookingID: bookingID,
		Score:     score,
		Comment:   comment,
	}
	if err := s.repo.CreateRating(ctx, rating); err != nil {
		if errors.Is(err, database.ErrRatingExists) {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}

	if s.eventBus != nil {
		payload := events.RatingEventPayload{
			RatingID:  rating.ID,
			BookingID: bookingID,
			UserID:    userID,
			Score:     score,
		}
		if err := s.eventBus.PublishJSON(events.EventRatingSubmitted, payload); err != nil {
			s.logger.Error().Err(err).Int64("rating_id", rating.ID).Msg("publish event error")
		}
	}

	s.logger.Info().Int64("booking_id", bookingID).Int("score", score).Msg("rating submitted")
	return rating, nil
}
