package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/models"
)

const notificationColumns = `id, user_id, type, status, booking_id, session_id, title, body,
                 navigate_to, scheduled_for, sent_at, received_at, attempts, created_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (*models.Notification, error) {
	n := &models.Notification{}
	var bookingID, sessionID sql.NullInt64
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Status, &bookingID, &sessionID, &n.Title, &n.Body,
		&n.NavigateTo, &n.ScheduledFor, &n.SentAt, &n.ReceivedAt, &n.Attempts, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.BookingID = bookingID.Int64
	n.SessionID = sessionID.Int64
	return n, nil
}

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (
				user_id, type, status, booking_id, session_id, title, body,
				navigate_to, scheduled_for, attempts, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	result, err := db.ExecContext(ctx, query,
		n.UserID,
		n.Type,
		n.Status,
		nullableID(n.BookingID),
		nullableID(n.SessionID),
		n.Title,
		n.Body,
		n.NavigateTo,
		n.ScheduledFor,
		n.Attempts,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now

	return nil
}

func (db *DB) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`
	n, err := scanNotification(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// DueNotifications возвращает pending-уведомления, время которых наступило.
func (db *DB) DueNotifications(ctx context.Context, now time.Time, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications
              WHERE status = ? AND scheduled_for <= ?
              ORDER BY scheduled_for ASC, id ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.NotificationPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due notifications: %w", err)
	}
	defer rows.Close()

	var due []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		due = append(due, n)
	}
	return due, rows.Err()
}

// MarkNotificationSent фиксирует отправку: переход pending→sent выполняется
// условным UPDATE, поэтому повторный или конкурентный вызов не перезапишет
// уже отправленное уведомление.
func (db *DB) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `UPDATE notifications SET status = ?, sent_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, models.NotificationSent, sentAt, id, models.NotificationPending)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetNotification(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentModification
	}
	return nil
}

// MarkNotificationReceived подтверждает получение; повторное подтверждение —
// идемпотентный no-op.
func (db *DB) MarkNotificationReceived(ctx context.Context, id int64, receivedAt time.Time) error {
	query := `UPDATE notifications SET status = ?, received_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, models.NotificationReceived, receivedAt, id, models.NotificationSent)
	if err != nil {
		return fmt.Errorf("failed to mark notification received: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		n, err := db.GetNotification(ctx, id)
		if err != nil {
			return err
		}
		if n.Status == models.NotificationReceived {
			return nil
		}
		return ErrConcurrentModification
	}
	return nil
}

// MarkNotificationFailed переводит уведомление в терминальный статус после
// исчерпания попыток доставки. Переход возможен только из pending, поэтому
// уведомление больше не попадает в выборку DueNotifications.
func (db *DB) MarkNotificationFailed(ctx context.Context, id int64) error {
	query := `UPDATE notifications SET status = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, models.NotificationFailed, id, models.NotificationPending)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := db.GetNotification(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) IncrementNotificationAttempts(ctx context.Context, id int64) error {
	query := `UPDATE notifications SET attempts = attempts + 1 WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment notification attempts: %w", err)
	}
	return nil
}

// CancelNotificationsForBooking удаляет еще не отправленные уведомления брони.
func (db *DB) CancelNotificationsForBooking(ctx context.Context, bookingID int64) (int64, error) {
	query := `DELETE FROM notifications WHERE booking_id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, bookingID, models.NotificationPending)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel notifications for booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
