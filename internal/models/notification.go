package models

import (
	"database/sql"
	"time"
)

type Notification struct {
	ID           int64        `json:"id"`
	UserID       int64        `json:"user_id"`
	Type         string       `json:"type"`   // reminder, cancellation, reschedule, rating_request, change
	Status       string       `json:"status"` // pending, sent, received
	BookingID    int64        `json:"booking_id,omitempty"`
	SessionID    int64        `json:"session_id,omitempty"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	NavigateTo   string       `json:"navigate_to,omitempty"`
	ScheduledFor time.Time    `json:"scheduled_for"`
	SentAt       sql.NullTime `json:"sent_at,omitempty"`
	ReceivedAt   sql.NullTime `json:"received_at,omitempty"`
	Attempts     int          `json:"attempts"`
	CreatedAt    time.Time    `json:"created_at"`
}
