package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/models"
)

const bookingColumns = `id, user_id, session_id, status, session_name, location,
                 starts_at, duration_minutes, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...interface{}) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.UserID, &b.SessionID, &b.Status, &b.SessionName, &b.Location,
		&b.StartsAt, &b.DurationMinutes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				user_id, session_id, status, session_name, location,
				starts_at, duration_minutes, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.UserID,
		booking.SessionID,
		booking.Status,
		booking.SessionName,
		booking.Location,
		booking.StartsAt,
		booking.DurationMinutes,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetActiveBooking возвращает бронь со статусом confirmed или attended
// для пары (пользователь, занятие); таких броней не бывает больше одной.
func (db *DB) GetActiveBooking(ctx context.Context, userID, sessionID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE user_id = ? AND session_id = ? AND status IN (?, ?)
              ORDER BY created_at DESC, id DESC LIMIT 1`
	b, err := scanBooking(db.QueryRowContext(ctx, query, userID, sessionID,
		models.StatusConfirmed, models.StatusAttended))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingsByUserAndSession(ctx context.Context, userID, sessionID int64, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE user_id = ? AND session_id = ? AND status = ?
              ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, userID, sessionID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by user and session: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (db *DB) GetUserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE user_id = ? ORDER BY starts_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (db *DB) GetBookingsBySession(ctx context.Context, sessionID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE session_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// GetConfirmedBookingsEndedBefore выбирает подтвержденные брони,
// занятие которых закончилось до cutoff. Используется административной
// разметкой absent/expired.
func (db *DB) GetConfirmedBookingsEndedBefore(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND datetime(starts_at, '+' || duration_minutes || ' minutes') < datetime(?)
              ORDER BY starts_at ASC`
	rows, err := db.QueryContext(ctx, query, models.StatusConfirmed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// UpdateBookingStatusWithVersion переводит бронь в новый статус через
// оптимистическую блокировку; при конфликте версий возвращает
// ErrConcurrentModification.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
