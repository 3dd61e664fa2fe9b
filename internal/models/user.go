package models

import "time"

// User объединяет всех участников системы: роль задается тегом,
// а не отдельным типом.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"` // member, trainer, admin
	Specialty    string    `json:"specialty,omitempty"` // только для тренеров
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsTrainer проверяет роль без приведения типов.
func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
