package models

import "time"

type Session struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	TrainerID       int64     `json:"trainer_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Capacity        int64     `json:"capacity"`
	Enrolled        int64     `json:"enrolled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EndsAt возвращает момент окончания занятия.
func (s *Session) EndsAt() time.Time {
	d := s.DurationMinutes
	if d <= 0 {
		d = DefaultDurationMinutes
	}
	return s.StartsAt.Add(time.Duration(d) * time.Minute)
}

// FreeSeats возвращает количество свободных мест.
func (s *Session) FreeSeats() int64 {
	free := s.Capacity - s.Enrolled
	if free < 0 {
		return 0
	}
	return free
}
