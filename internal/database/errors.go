package database

import "errors"

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrRatingNotFound         = errors.New("rating not found")
	ErrCapacityExceeded       = errors.New("session capacity exceeded")
	ErrRatingExists           = errors.New("rating already exists for booking")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)
