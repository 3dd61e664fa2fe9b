package domain

import (
	"context"
	"time"

	"gymbook/internal/models"
)

// Repository is the persistence surface consumed by the engine.
// The sqlite implementation lives in internal/database.
type Repository interface {
	// Sessions
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	GetUpcomingSessions(ctx context.Context, from time.Time, days int) ([]*models.Session, error)
	ReserveSeat(ctx context.Context, sessionID int64) error
	ReleaseSeat(ctx context.Context, sessionID int64) error

	// Bookings
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetActiveBooking(ctx context.Context, userID, sessionID int64) (*models.Booking, error)
	GetBookingsByUserAndSession(ctx context.Context, userID, sessionID int64, status string) ([]*models.Booking, error)
	GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetConfirmedBookingsEndedBefore(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)
	GetBookingsBySession(ctx context.Context, sessionID int64) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error

	// Ratings
	CreateRating(ctx context.Context, rating *models.Rating) error
	GetRatingByBooking(ctx context.Context, bookingID int64) (*models.Rating, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkNotificationReceived(ctx context.Context, id int64, receivedAt time.Time) error
	MarkNotificationFailed(ctx context.Context, id int64) error
	IncrementNotificationAttempts(ctx context.Context, id int64) error
	CancelNotificationsForBooking(ctx context.Context, bookingID int64) (int64, error)

	// Users
	CreateOrUpdateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Clock abstracts time so window and expiry logic is testable.
type Clock interface {
	Now() time.Time
}

// Delivery hands a rendered notification to the outside world
// (push gateway, email relay). Failure is non-fatal to a dispatch batch.
type Delivery interface {
	Send(ctx context.Context, destination, subject, body string) error
}

// OTPStore keeps issued one-time passcodes with a TTL.
type OTPStore interface {
	SaveCode(ctx context.Context, email, code string, ttl time.Duration) error
	GetCode(ctx context.Context, email string) (string, error)
	DeleteCode(ctx context.Context, email string) error
}

// EventPublisher broadcasts domain events to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingEngine is the lifecycle surface exposed to the HTTP boundary.
type BookingEngine interface {
	Create(ctx context.Context, userID, sessionID int64) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, userID int64) error
	ListActiveForUser(ctx context.Context, userID int64) ([]*models.Booking, error)
	MarkAbsent(ctx context.Context, bookingID int64) error
	MarkExpired(ctx context.Context, bookingID int64) error
	SweepPastBookings(ctx context.Context, grace time.Duration) (int, error)
}

// CheckInVerifier validates and executes attendance marking.
type CheckInVerifier interface {
	Verify(ctx context.Context, userID, sessionID int64) (*models.Booking, error)
	CheckIn(ctx context.Context, userID, sessionID int64) (*models.Booking, error)
}

// RatingGate accepts post-class ratings inside the validity window.
type RatingGate interface {
	Submit(ctx context.Context, userID, bookingID int64, score int, comment string) (*models.Rating, error)
}
