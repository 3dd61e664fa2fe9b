package database

import (
	"context"
	"testing"
	"time"

	"gymbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestNotification(t *testing.T, db *DB, bookingID int64, scheduledFor time.Time) *models.Notification {
	t.Helper()
	n := &models.Notification{
		UserID:       1,
		Type:         models.NotificationTypeReminder,
		BookingID:    bookingID,
		SessionID:    10,
		Title:        "Напоминание о занятии",
		Body:         "Занятие скоро начнется",
		ScheduledFor: scheduledFor,
	}
	require.NoError(t, db.CreateNotification(context.Background(), n))
	return n
}

func TestCreateNotification_DefaultsToPending(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	n := createTestNotification(t, db, 5, time.Now().Add(time.Hour))
	assert.NotZero(t, n.ID)
	assert.Equal(t, models.NotificationPending, n.Status)
}

func TestDueNotifications(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	due := createTestNotification(t, db, 1, now.Add(-time.Minute))
	createTestNotification(t, db, 2, now.Add(time.Hour))

	sent := createTestNotification(t, db, 3, now.Add(-time.Hour))
	require.NoError(t, db.MarkNotificationSent(ctx, sent.ID, now))

	got, err := db.DueNotifications(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestMarkNotificationSent_OnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	n := createTestNotification(t, db, 1, time.Now().Add(-time.Minute))

	require.NoError(t, db.MarkNotificationSent(ctx, n.ID, time.Now()))

	// Повторная фиксация проигрывает условному UPDATE
	err := db.MarkNotificationSent(ctx, n.ID, time.Now())
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, got.Status)
	assert.True(t, got.SentAt.Valid)
}

func TestMarkNotificationReceived_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	n := createTestNotification(t, db, 1, time.Now().Add(-time.Minute))
	require.NoError(t, db.MarkNotificationSent(ctx, n.ID, time.Now()))

	require.NoError(t, db.MarkNotificationReceived(ctx, n.ID, time.Now()))
	// Повторное подтверждение — no-op
	require.NoError(t, db.MarkNotificationReceived(ctx, n.ID, time.Now()))

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationReceived, got.Status)
	assert.True(t, got.ReceivedAt.Valid)
}

func TestMarkNotificationReceived_PendingRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	n := createTestNotification(t, db, 1, time.Now().Add(time.Hour))

	// Нельзя подтвердить то, что еще не отправлено
	err := db.MarkNotificationReceived(ctx, n.ID, time.Now())
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestMarkNotificationFailed(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	n := createTestNotification(t, db, 1, now.Add(-time.Minute))

	require.NoError(t, db.MarkNotificationFailed(ctx, n.ID))

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationFailed, got.Status)

	// Терминальный статус: в выборку к диспетчеру больше не попадает
	due, err := db.DueNotifications(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	err = db.MarkNotificationFailed(ctx, n.ID)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestMarkNotificationFailed_SentRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	n := createTestNotification(t, db, 1, time.Now().Add(-time.Minute))
	require.NoError(t, db.MarkNotificationSent(ctx, n.ID, time.Now()))

	// Отправленное уведомление не переводится в failed
	err := db.MarkNotificationFailed(ctx, n.ID)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, got.Status)
}

func TestIncrementNotificationAttempts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	n := createTestNotification(t, db, 1, time.Now())

	require.NoError(t, db.IncrementNotificationAttempts(ctx, n.ID))
	require.NoError(t, db.IncrementNotificationAttempts(ctx, n.ID))

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
}

func TestCancelNotificationsForBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	createTestNotification(t, db, 7, now.Add(time.Hour))
	createTestNotification(t, db, 7, now.Add(2*time.Hour))

	sent := createTestNotification(t, db, 7, now.Add(-time.Minute))
	require.NoError(t, db.MarkNotificationSent(ctx, sent.ID, now))

	removed, err := db.CancelNotificationsForBooking(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	// Отправленное уведомление не трогаем
	_, err = db.GetNotification(ctx, sent.ID)
	assert.NoError(t, err)
}
