package service

import (
	"context"
	"errors"

	"gymbook/internal/database"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/metrics"
	"gymbook/internal/models"

	"github.com/rs/zerolog"
)

// CheckInService validates and executes attendance marking. Verify is the
// side-effect-free preview used by confirmation UIs; CheckIn performs the
// confirmed → attended transition.
type CheckInService struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	clock    domain.Clock
	logger   *zerolog.Logger
}

func NewCheckInService(repo domain.Repository, eventBus domain.EventPublisher, clock domain.Clock, logger *zerolog.Logger) *CheckInService {
	if clock == nil {
		clock = SystemClock()
	}
	return &CheckInService{repo: repo, eventBus: eventBus, clock: clock, logger: logger}
}

func (s *CheckInService) Verify(ctx context.Context, userID, sessionID int64) (*models.Booking, error) {
	booking, err := s.selectBooking(ctx, userID, sessionID)
	if err != nil {
		metrics.IncCheckIn(outcomeLabel(err))
		return nil, err
	}
	return booking, nil
}

func (s *CheckInService) CheckIn(ctx context.Context, userID, sessionID int64) (*models.Booking, error) {
	booking, err := s.selectBooking(ctx, userID, sessionID)
	if err != nil {
		metrics.IncCheckIn(outcomeLabel(err))
		return nil, err
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusAttended); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			// Параллельный check-in успел первым
			metrics.IncCheckIn("already_checked_in")
			return nil, ErrAlreadyCheckedIn
		}
		return nil, err
	}

	booking.Status = models.StatusAttended
	booking.Version++

	if s.eventBus != nil {
		payload := events.BookingEventPayload{
			BookingID:   booking.ID,
			UserID:      booking.UserID,
			SessionID:   booking.SessionID,
			SessionName: booking.SessionName,
			Status:      booking.Status,
			StartsAt:    booking.StartsAt,
		}
		if err := s.eventBus.PublishJSON(events.EventCheckedIn, payload); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("publish event error")
		}
	}

	metrics.IncCheckIn("ok")
	s.logger.Info().Int64("booking_id", booking.ID).Int64("user_id", userID).Msg("checked in")
	return booking, nil
}

// selectBooking applies the check-in rules in order: an attended booking
// rejects immediately, then the latest confirmed booking is selected and
// checked against the session window. Check-in stays valid for the whole
// running duration of the class, including before it starts.
func (s *CheckInService) selectBooking(ctx context.Context, userID, sessionID int64) (*models.Booking, error) {
	attended, err := s.repo.GetBookingsByUserAndSession(ctx, userID, sessionID, models.StatusAttended)
	if err != nil {
		return nil, err
	}
	if len(attended) > 0 {
		return nil, ErrAlreadyCheckedIn
	}

	confirmed, err := s.repo.GetBookingsByUserAndSession(ctx, userID, sessionID, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if len(confirmed) == 0 {
		return nil, ErrNoBookingFound
	}

	// Запрос отсортирован по created_at DESC: берем самую свежую бронь
	booking := confirmed[0]

	if s.clock.Now().After(booking.SessionEnd()) {
		return nil, ErrClassExpired
	}

	return booking, nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyCheckedIn):
		return "already_checked_in"
	case errors.Is(err, ErrNoBookingFound):
		return "no_booking"
	case errors.Is(err, ErrClassExpired):
		return "expired"
	default:
		return "error"
	}
}
