package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymbook/internal/database"
	"gymbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newBookingService(repo *mockRepo, clock *fakeClock) *BookingService {
	logger := zerolog.Nop()
	capacity := NewCapacityManager(repo, &logger)
	return NewBookingService(repo, capacity, nil, clock, 2*time.Hour, &logger)
}

func TestBookingCreate(t *testing.T) {
	repo := new(mockRepo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	svc := newBookingService(repo, clock)

	session := &models.Session{
		ID:              10,
		Name:            "Йога",
		Location:        "Зал 1",
		StartsAt:        now.Add(24 * time.Hour),
		DurationMinutes: 60,
		Capacity:        5,
	}

	repo.On("GetActiveBooking", mock.Anything, int64(1), int64(10)).Return(nil, database.ErrBookingNotFound)
	repo.On("GetSession", mock.Anything, int64(10)).Return(session, nil)
	repo.On("ReserveSeat", mock.Anything, int64(10)).Return(nil)
	repo.On("CreateBooking", mock.Anything, mock.Anything).Return(nil)
	repo.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	booking, err := svc.Create(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.Equal(t, "Йога", booking.SessionName)

	// Напоминание и запрос оценки
	repo.AssertNumberOfCalls(t, "CreateNotification", 2)
	repo.AssertExpectations(t)
}

func TestBookingCreate_Duplicate(t *testing.T) {
	repo := new(mockRepo)
	clock := &fakeClock{now: time.Now()}
	svc := newBookingService(repo, clock)

	existing := &models.Booking{ID: 5, UserID: 1, SessionID: 10, Status: models.StatusConfirmed}
	repo.On("GetActiveBooking", mock.Anything, int64(1), int64(10)).Return(existing, nil)

	_, err := svc.Create(context.Background(), 1, 10)
	assert.ErrorIs(t, err, ErrDuplicateBooking)
	repo.AssertNotCalled(t, "ReserveSeat", mock.Anything, mock.Anything)
}

func TestBookingCreate_CapacityExceeded(t *testing.T) {
	repo := new(mockRepo)
	now := time.Now()
	svc := newBookingService(repo, &fakeClock{now: now})

	session := &models.Session{ID: 10, Name: "Йога", StartsAt: now.Add(time.Hour), DurationMinutes: 60, Capacity: 1, Enrolled: 1}
	repo.On("GetActiveBooking", mock.Anything, int64(1), int64(10)).Return(nil, database.ErrBookingNotFound)
	repo.On("GetSession", mock.Anything, int64(10)).Return(session, nil)
	repo.On("ReserveSeat", mock.Anything, int64(10)).Return(database.ErrCapacityExceeded)

	_, err := svc.Create(context.Background(), 1, 10)
	assert.ErrorIs(t, err, database.ErrCapacityExceeded)
	repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingCreate_CompensatingRelease(t *testing.T) {
	repo := new(mockRepo)
	now := time.Now()
	svc := newBookingService(repo, &fakeClock{now: now})

	session := &models.Session{ID: 10, Name: "Йога", StartsAt: now.Add(time.Hour), DurationMinutes: 60, Capacity: 5}
	repo.On("GetActiveBooking", mock.Anything, int64(1), int64(10)).Return(nil, database.ErrBookingNotFound)
	repo.On("GetSession", mock.Anything, int64(10)).Return(session, nil)
	repo.On("ReserveSeat", mock.Anything, int64(10)).Return(nil)
	repo.On("CreateBooking", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	repo.On("ReleaseSeat", mock.Anything, int64(10)).Return(nil)

	_, err := svc.Create(context.Background(), 1, 10)
	require.Error(t, err)

	// Место возвращено после неудачной записи брони
	repo.AssertCalled(t, "ReleaseSeat", mock.Anything, int64(10))
}

func TestBookingCancel(t *testing.T) {
	repo := new(mockRepo)
	now := time.Now()
	svc := newBookingService(repo, &fakeClock{now: now})

	booking := &models.Booking{
		ID: 5, UserID: 1, SessionID: 10, Status: models.StatusConfirmed,
		SessionName: "Йога", StartsAt: now.Add(24 * time.Hour), DurationMinutes: 60, Version: 1,
	}
	repo.On("GetBooking", mock.Anything, int64(5)).Return(booking, nil)
	repo.On("UpdateBookingStatusWithVersion", mock.Anything, int64(5), int64(1), models.StatusCancelled).Return(nil)
	repo.On("ReleaseSeat", mock.Anything, int64(10)).Return(nil)
	repo.On("CancelNotificationsForBooking", mock.Anything, int64(5)).Return(int64(2), nil)
	repo.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	err := svc.Cancel(context.Background(), 5, 1)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestBookingCancel_Forbidden(t *testing.T) {
	repo := new(mockRepo)
	svc := newBookingService(repo, &fakeClock{now: time.Now()})

	booking := &models.Booking{ID: 5, UserID: 1, Status: models.StatusConfirmed}
	repo.On("GetBooking", mock.Anything, int64(5)).Return(booking, nil)

	err := svc.Cancel(context.Background(), 5, 2)
	assert.ErrorIs(t, err, ErrForbidden)
	repo.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingCancel_InvalidState(t *testing.T) {
	repo := new(mockRepo)
	svc := newBookingService(repo, &fakeClock{now: time.Now()})

	booking := &models.Booking{ID: 5, UserID: 1, Status: models.StatusAttended}
	repo.On("GetBooking", mock.Anything, int64(5)).Return(booking, nil)

	err := svc.Cancel(context.Background(), 5, 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestListActiveForUser(t *testing.T) {
	repo := new(mockRepo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newBookingService(repo, &fakeClock{now: now})

	bookings := []*models.Booking{
		{ID: 1, Status: models.StatusConfirmed, StartsAt: now.Add(2 * time.Hour)},
		{ID: 2, Status: models.StatusConfirmed, StartsAt: now.Add(-2 * time.Hour)}, // уже началось
		{ID: 3, Status: models.StatusCancelled, StartsAt: now.Add(3 * time.Hour)},
	}
	repo.On("GetUserBookings", mock.Anything, int64(1)).Return(bookings, nil)

	active, err := svc.ListActiveForUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)
}

func TestMarkAbsent_SessionNotEnded(t *testing.T) {
	repo := new(mockRepo)
	now := time.Now()
	svc := newBookingService(repo, &fakeClock{now: now})

	booking := &models.Booking{
		ID: 5, UserID: 1, Status: models.StatusConfirmed,
		StartsAt: now.Add(time.Hour), DurationMinutes: 60, Version: 1,
	}
	repo.On("GetBooking", mock.Anything, int64(5)).Return(booking, nil)

	err := svc.MarkAbsent(context.Background(), 5)
	assert.ErrorIs(t, err, ErrSessionNotEnded)
}

func TestMarkExpired(t *testing.T) {
	repo := new(mockRepo)
	now := time.Now()
	svc := newBookingService(repo, &fakeClock{now: now})

	booking := &models.Booking{
		ID: 5, UserID: 1, Status: models.StatusConfirmed,
		StartsAt: now.Add(time.Hour), DurationMinutes: 60, Version: 1,
	}
	repo.On("GetBooking", mock.Anything, int64(5)).Return(booking, nil)
	repo.On("UpdateBookingStatusWithVersion", mock.Anything, int64(5), int64(1), models.StatusExpired).Return(nil)

	err := svc.MarkExpired(context.Background(), 5)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSweepPastBookings(t *testing.T) {
	repo := new(mockRepo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newBookingService(repo, &fakeClock{now: now})

	stale := []*models.Booking{
		{ID: 1, Status: models.StatusConfirmed, StartsAt: now.Add(-72 * time.Hour), DurationMinutes: 60, Version: 1},
		{ID: 2, Status: models.StatusConfirmed, StartsAt: now.Add(-48 * time.Hour), DurationMinutes: 60, Version: 1},
	}
	repo.On("GetConfirmedBookingsEndedBefore", mock.Anything, now.Add(-24*time.Hour)).Return(stale, nil)
	repo.On("UpdateBookingStatusWithVersion", mock.Anything, int64(1), int64(1), models.StatusAbsent).Return(nil)
	// Вторую бронь успели отменить параллельно
	repo.On("UpdateBookingStatusWithVersion", mock.Anything, int64(2), int64(1), models.StatusAbsent).Return(database.ErrConcurrentModification)

	marked, err := svc.SweepPastBookings(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
}
