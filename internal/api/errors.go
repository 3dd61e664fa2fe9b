package api

import (
	"errors"
	"net/http"

	"gymbook/internal/database"
	"gymbook/internal/otp"
	"gymbook/internal/service"
)

var (
	errMissingAPIKey = errors.New("missing api key header")
	errInvalidAPIKey = errors.New("invalid api key")
)

// statusForError maps engine error kinds to transport status codes. The
// engine returns typed results; translation happens only here.
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrSessionNotFound),
		errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrNotificationNotFound),
		errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, service.ErrNoBookingFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, database.ErrCapacityExceeded),
		errors.Is(err, service.ErrDuplicateBooking),
		errors.Is(err, service.ErrAlreadyRated),
		errors.Is(err, service.ErrAlreadyCheckedIn),
		errors.Is(err, database.ErrRatingExists),
		errors.Is(err, database.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrSessionNotEnded),
		errors.Is(err, service.ErrInvalidScore):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrTooEarly),
		errors.Is(err, service.ErrWindowExpired),
		errors.Is(err, service.ErrClassExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, otp.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, otp.ErrCodeMismatch),
		errors.Is(err, otp.ErrCodeExpired):
		return http.StatusUnauthorized
	default:
		var tooSoon *otp.TooSoonError
		if errors.As(err, &tooSoon) {
			return http.StatusTooManyRequests
		}
		return http.StatusInternalServerError
	}
}
