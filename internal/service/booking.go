package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/database"
	"gymbook/internal/domain"
	"gymbook/internal/events"
	"gymbook/internal/metrics"
	"gymbook/internal/models"

	"github.com/rs/zerolog"
)

// BookingService drives the booking state machine:
// confirmed → cancelled | attended | absent | expired.
type BookingService struct {
	repo           domain.Repository
	capacity       *CapacityManager
	eventBus       domain.EventPublisher
	clock          domain.Clock
	logger         *zerolog.Logger
	reminderOffset time.Duration

	createLocks keyedMutex
}

func NewBookingService(repo domain.Repository, capacity *CapacityManager, eventBus domain.EventPublisher, clock domain.Clock, reminderOffset time.Duration, logger *zerolog.Logger) *BookingService {
	if reminderOffset <= 0 {
		reminderOffset = time.Duration(models.ReminderOffsetMinutes) * time.Minute
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &BookingService{
		repo:           repo,
		capacity:       capacity,
		eventBus:       eventBus,
		clock:          clock,
		logger:         logger,
		reminderOffset: reminderOffset,
	}
}

// Create reserves a seat first and only then persists the booking; the seat
// is released again if the insert fails. The duplicate check and the insert
// run under a per-(user, session) lock so two concurrent requests cannot
// both pass the check.
func (s *BookingService) Create(ctx context.Context, userID, sessionID int64) (*models.Booking, error) {
	unlock := s.createLocks.lock(fmt.Sprintf("create:%d:%d", userID, sessionID))
	defer unlock()

	if _, err := s.repo.GetActiveBooking(ctx, userID, sessionID); err == nil {
		metrics.IncBooking("create", "duplicate")
		return nil, ErrDuplicateBooking
	} else if !errors.Is(err, database.ErrBookingNotFound) {
		return nil, err
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		metrics.IncBooking("create", "session_not_found")
		return nil, err
	}

	if err := s.capacity.Reserve(ctx, sessionID); err != nil {
		if errors.Is(err, database.ErrCapacityExceeded) {
			metrics.IncBooking("create", "capacity_exceeded")
		}
		return nil, err
	}

	booking := &models.Booking{
		UserID:          userID,
		SessionID:       sessionID,
		Status:          models.StatusConfirmed,
		SessionName:     session.Name,
		Location:        session.Location,
		StartsAt:        session.StartsAt,
		DurationMinutes: session.DurationMinutes,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		// Компенсация: место уже занято, бронь не записана
		if relErr := s.capacity.Release(ctx, sessionID); relErr != nil {
			s.logger.Error().Err(relErr).Int64("session_id", sessionID).
				Msg("compensating release failed, seat leaked")
		}
		metrics.IncBooking("create", "error")
		return nil, err
	}

	s.scheduleBookingNotifications(ctx, booking, session)
	s.publishBookingEvent(events.EventBookingCreated, booking)
	metrics.IncBooking("create", "ok")

	s.logger.Info().Int64("booking_id", booking.ID).Int64("user_id", userID).
		Int64("session_id", sessionID).Msg("booking created")
	return booking, nil
}

// Cancel transitions a confirmed booking to cancelled, frees the seat and
// drops pending reminders for the booking.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID int64) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID {
		return ErrForbidden
	}
	if booking.Status != models.StatusConfirmed {
		metrics.IncBooking("cancel", "invalid_state")
		return ErrInvalidState
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusCancelled); err != nil {
		return err
	}

	if err := s.capacity.Release(ctx, booking.SessionID); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).
			Int64("session_id", booking.SessionID).Msg("release after cancel failed")
		return err
	}

	removed, err := s.repo.CancelNotificationsForBooking(ctx, booking.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("cancel pending notifications failed")
	} else if removed > 0 {
		s.logger.Debug().Int64("booking_id", bookingID).Int64("removed", removed).
			Msg("pending notifications cancelled")
	}

	s.notifyCancellation(ctx, booking)
	booking.Status = models.StatusCancelled
	s.publishBookingEvent(events.EventBookingCancelled, booking)
	metrics.IncBooking("cancel", "ok")

	return nil
}

// ListActiveForUser returns confirmed bookings with a future start time,
// ordered by start ascending. A read-side filter, not a stored view.
func (s *BookingService) ListActiveForUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	all, err := s.repo.GetUserBookings(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	active := make([]*models.Booking, 0, len(all))
	for _, b := range all {
		if b.Status == models.StatusConfirmed && b.StartsAt.After(now) {
			active = append(active, b)
		}
	}
	return active, nil
}

// MarkAbsent is the administrative terminal transition for a confirmed
// booking whose session ended without a check-in.
func (s *BookingService) MarkAbsent(ctx context.Context, bookingID int64) error {
	return s.markTerminal(ctx, bookingID, models.StatusAbsent, events.EventBookingAbsent, true)
}

// MarkExpired is the administrative terminal transition for stale
// confirmed bookings.
func (s *BookingService) MarkExpired(ctx context.Context, bookingID int64) error {
	return s.markTerminal(ctx, bookingID, models.StatusExpired, events.EventBookingExpired, false)
}

func (s *BookingService) markTerminal(ctx context.Context, bookingID int64, status, eventType string, requireEnded bool) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.StatusConfirmed {
		return ErrInvalidState
	}
	if requireEnded && s.clock.Now().Before(booking.SessionEnd()) {
		return ErrSessionNotEnded
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, status); err != nil {
		return err
	}

	booking.Status = status
	s.publishBookingEvent(eventType, booking)
	metrics.IncBooking(status, "ok")
	return nil
}

// SweepPastBookings marks stale confirmed bookings absent once their session
// ended more than grace ago. Invoked by an operator endpoint or a timer, not
// by the live request path.
func (s *BookingService) SweepPastBookings(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-grace)
	stale, err := s.repo.GetConfirmedBookingsEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, b := range stale {
		if err := s.repo.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusAbsent); err != nil {
			// Конкурентный переход (например, отмена) — пропускаем
			s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("sweep skip booking")
			continue
		}
		b.Status = models.StatusAbsent
		s.publishBookingEvent(events.EventBookingAbsent, b)
		marked++
	}

	if marked > 0 {
		s.logger.Info().Int("marked", marked).Msg("stale bookings marked absent")
	}
	return marked, nil
}

// scheduleBookingNotifications enqueues the reminder before the session and
// the rating request at session end. Failures are logged, not fatal: the
// booking itself is already committed.
func (s *BookingService) scheduleBookingNotifications(ctx context.Context, booking *models.Booking, session *models.Session) {
	now := s.clock.Now()

	reminderAt := session.StartsAt.Add(-s.reminderOffset)
	if reminderAt.After(now) {
		reminder := &models.Notification{
			UserID:       booking.UserID,
			Type:         models.NotificationTypeReminder,
			BookingID:    booking.ID,
			SessionID:    session.ID,
			Title:        "Напоминание о занятии",
			Body:         fmt.Sprintf("Занятие «%s» начнется в %s", session.Name, session.StartsAt.Format("15:04")),
			NavigateTo:   fmt.Sprintf("/bookings/%d", booking.ID),
			ScheduledFor: reminderAt,
		}
		if err := s.repo.CreateNotification(ctx, reminder); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("schedule reminder failed")
		}
	}

	ratingRequest := &models.Notification{
		UserID:       booking.UserID,
		Type:         models.NotificationTypeRatingRequest,
		BookingID:    booking.ID,
		SessionID:    session.ID,
		Title:        "Оцените занятие",
		Body:         fmt.Sprintf("Как прошло занятие «%s»?", session.Name),
		NavigateTo:   fmt.Sprintf("/bookings/%d/rating", booking.ID),
		ScheduledFor: session.EndsAt(),
	}
	if err := s.repo.CreateNotification(ctx, ratingRequest); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("schedule rating request failed")
	}
}

func (s *BookingService) notifyCancellation(ctx context.Context, booking *models.Booking) {
	n := &models.Notification{
		UserID:       booking.UserID,
		Type:         models.NotificationTypeCancellation,
		BookingID:    booking.ID,
		SessionID:    booking.SessionID,
		Title:        "Бронирование отменено",
		Body:         fmt.Sprintf("Ваша запись на «%s» отменена", booking.SessionName),
		ScheduledFor: s.clock.Now(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("cancellation notification failed")
	}
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		SessionID:   booking.SessionID,
		SessionName: booking.SessionName,
		Status:      booking.Status,
		StartsAt:    booking.StartsAt,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
