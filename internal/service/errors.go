package service

import "errors"

var (
	ErrDuplicateBooking = errors.New("active booking already exists for user and session")
	ErrForbidden        = errors.New("caller is not the owner of the resource")
	ErrInvalidState     = errors.New("operation not valid for current booking status")
	ErrAlreadyCheckedIn = errors.New("booking already checked in")
	ErrNoBookingFound   = errors.New("no confirmed booking found for user and session")
	ErrClassExpired     = errors.New("class has already ended")
	ErrTooEarly         = errors.New("rating window has not opened yet")
	ErrWindowExpired    = errors.New("rating window has expired")
	ErrAlreadyRated     = errors.New("booking already rated")
	ErrInvalidScore     = errors.New("score must be between 1 and 5")
	ErrSessionNotEnded  = errors.New("session has not ended yet")
)
