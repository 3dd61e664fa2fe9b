package models

import "time"

type Booking struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	SessionID int64  `json:"session_id"`
	Status    string `json:"status"` // confirmed, cancelled, attended, absent, expired

	// Денормализованные данные занятия для быстрого чтения
	SessionName     string    `json:"session_name"`
	Location        string    `json:"location"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// SessionEnd возвращает момент окончания занятия по денормализованным полям.
func (b *Booking) SessionEnd() time.Time {
	d := b.DurationMinutes
	if d <= 0 {
		d = DefaultDurationMinutes
	}
	return b.StartsAt.Add(time.Duration(d) * time.Minute)
}

// IsActive сообщает, удерживает ли бронь место в занятии.
func (b *Booking) IsActive() bool {
	return b.Status == StatusConfirmed || b.Status == StatusAttended
}
