package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/models"
)

// CreateOrUpdateUser создает или обновляет пользователя по email.
func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (email, name, role, specialty, last_activity, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(email) DO UPDATE SET
            name = excluded.name,
            role = excluded.role,
            specialty = COALESCE(excluded.specialty, specialty),
            last_activity = excluded.last_activity,
            updated_at = excluded.updated_at
    `
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	_, err := db.ExecContext(ctx, query,
		user.Email,
		user.Name,
		user.Role,
		user.Specialty,
		now,
		user.CreatedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create or update user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, name, role, specialty, last_activity, created_at, updated_at
              FROM users WHERE email = ?`
	return db.scanUser(db.QueryRowContext(ctx, query, email))
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, email, name, role, specialty, last_activity, created_at, updated_at
              FROM users WHERE id = ?`
	return db.scanUser(db.QueryRowContext(ctx, query, id))
}

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var specialty sql.NullString
	var lastActivity sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &specialty,
		&lastActivity, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Specialty = specialty.String
	u.LastActivity = lastActivity.Time
	return &u, nil
}
