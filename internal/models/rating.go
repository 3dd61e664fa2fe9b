package models

import "time"

type Rating struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BookingID int64     `json:"booking_id"`
	Score     int       `json:"score"` // 1..5
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
