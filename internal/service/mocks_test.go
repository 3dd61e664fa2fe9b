package service

import (
	"context"
	"time"

	"gymbook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateSession(ctx context.Context, s *models.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockRepo) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}
func (m *mockRepo) GetUpcomingSessions(ctx context.Context, from time.Time, days int) ([]*models.Session, error) {
	args := m.Called(ctx, from, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Session), args.Error(1)
}
func (m *mockRepo) ReserveSeat(ctx context.Context, sessionID int64) error {
	return m.Called(ctx, sessionID).Error(0)
}
func (m *mockRepo) ReleaseSeat(ctx context.Context, sessionID int64) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) GetActiveBooking(ctx context.Context, userID, sessionID int64) (*models.Booking, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) GetBookingsByUserAndSession(ctx context.Context, userID, sessionID int64, status string) ([]*models.Booking, error) {
	args := m.Called(ctx, userID, sessionID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetConfirmedBookingsEndedBefore(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetBookingsBySession(ctx context.Context, sessionID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	return m.Called(ctx, id, fromVersion, status).Error(0)
}

func (m *mockRepo) CreateRating(ctx context.Context, r *models.Rating) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRepo) GetRatingByBooking(ctx context.Context, bookingID int64) (*models.Rating, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rating), args.Error(1)
}

func (m *mockRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockRepo) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}
func (m *mockRepo) DueNotifications(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}
func (m *mockRepo) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) error {
	return m.Called(ctx, id, sentAt).Error(0)
}
func (m *mockRepo) MarkNotificationReceived(ctx context.Context, id int64, receivedAt time.Time) error {
	return m.Called(ctx, id, receivedAt).Error(0)
}
func (m *mockRepo) MarkNotificationFailed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) IncrementNotificationAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) CancelNotificationsForBooking(ctx context.Context, bookingID int64) (int64, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) CreateOrUpdateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// fakeClock отдает фиксированный момент времени.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
