package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymbook/internal/models"
)

func (db *DB) CreateRating(ctx context.Context, rating *models.Rating) error {
	query := `INSERT INTO ratings (user_id, booking_id, score, comment, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		rating.UserID,
		rating.BookingID,
		rating.Score,
		rating.Comment,
		now,
	)
	if err != nil {
		// Уникальный индекс по booking_id страхует критическую секцию шлюза
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrRatingExists
		}
		return fmt.Errorf("failed to create rating: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rating.ID = id
	rating.CreatedAt = now

	return nil
}

func (db *DB) GetRatingByBooking(ctx context.Context, bookingID int64) (*models.Rating, error) {
	var r models.Rating
	query := `SELECT id, user_id, booking_id, score, comment, created_at
              FROM ratings WHERE booking_id = ?`
	err := db.QueryRowContext(ctx, query, bookingID).Scan(
		&r.ID, &r.UserID, &r.BookingID, &r.Score, &r.Comment, &r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return &r, nil
}
