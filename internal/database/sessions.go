package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/models"
)

func (db *DB) CreateSession(ctx context.Context, session *models.Session) error {
	query := `INSERT INTO sessions (name, location, trainer_id, starts_at, duration_minutes, capacity, enrolled, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		session.Name,
		session.Location,
		session.TrainerID,
		session.StartsAt,
		session.DurationMinutes,
		session.Capacity,
		session.Enrolled,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	session.ID = id
	session.CreatedAt = now
	session.UpdatedAt = now

	return nil
}

func (db *DB) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	var s models.Session
	query := `SELECT id, name, location, trainer_id, starts_at, duration_minutes, capacity, enrolled, created_at, updated_at
              FROM sessions WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.Location, &s.TrainerID, &s.StartsAt,
		&s.DurationMinutes, &s.Capacity, &s.Enrolled, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// ReserveSeat атомарно занимает место: сравнение и инкремент выполняются
// одним UPDATE, поэтому два конкурентных вызова на последнее место дают
// ровно один успех.
func (db *DB) ReserveSeat(ctx context.Context, sessionID int64) error {
	query := `UPDATE sessions SET enrolled = enrolled + 1, updated_at = ?
              WHERE id = ? AND enrolled < capacity`
	result, err := db.ExecContext(ctx, query, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to reserve seat: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Либо занятия нет, либо мест не осталось
		if _, err := db.GetSession(ctx, sessionID); err != nil {
			return err
		}
		return ErrCapacityExceeded
	}
	return nil
}

// ReleaseSeat атомарно освобождает место, не опускаясь ниже нуля.
// Ноль при корректном жизненном цикле недостижим, поэтому факт
// «отпустили при нуле» логируется как аномалия.
func (db *DB) ReleaseSeat(ctx context.Context, sessionID int64) error {
	query := `UPDATE sessions SET enrolled = enrolled - 1, updated_at = ?
              WHERE id = ? AND enrolled > 0`
	result, err := db.ExecContext(ctx, query, time.Now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to release seat: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := db.GetSession(ctx, sessionID); err != nil {
			return err
		}
		db.logger.Error().Int64("session_id", sessionID).
			Msg("release on session with zero enrolled, consistency anomaly")
	}
	return nil
}

func (db *DB) GetUpcomingSessions(ctx context.Context, from time.Time, days int) ([]*models.Session, error) {
	to := from.AddDate(0, 0, days)
	query := `SELECT id, name, location, trainer_id, starts_at, duration_minutes, capacity, enrolled, created_at, updated_at
              FROM sessions WHERE starts_at >= ? AND starts_at < ? ORDER BY starts_at ASC`
	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get upcoming sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s := &models.Session{}
		err := rows.Scan(
			&s.ID, &s.Name, &s.Location, &s.TrainerID, &s.StartsAt,
			&s.DurationMinutes, &s.Capacity, &s.Enrolled, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
