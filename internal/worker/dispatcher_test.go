package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gymbook/internal/database"
	"gymbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureDelivery struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (d *captureDelivery) Send(ctx context.Context, destination, subject, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, destination)
	return nil
}

func (d *captureDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func setupDispatcherTest(t *testing.T, delivery *captureDelivery, clock *fakeClock) (*Dispatcher, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := &models.User{Email: "user@example.com", Name: "Иван", Role: models.RoleMember}
	require.NoError(t, db.CreateOrUpdateUser(context.Background(), user))

	retry := RetryPolicy{MaxAttempts: 3, InitialDelay: 30 * time.Second, MaxDelay: time.Hour}
	return NewDispatcher(db, delivery, clock, 15*time.Minute, 100, retry, &logger), db
}

func enqueueNotification(t *testing.T, db *database.DB, scheduledFor time.Time) *models.Notification {
	t.Helper()
	n := &models.Notification{
		UserID:       1,
		Type:         models.NotificationTypeReminder,
		BookingID:    1,
		Title:        "Напоминание о занятии",
		Body:         "Занятие скоро начнется",
		ScheduledFor: scheduledFor,
	}
	require.NoError(t, db.CreateNotification(context.Background(), n))
	return n
}

func TestRunOnce_SendsDue(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	delivery := &captureDelivery{}
	d, db := setupDispatcherTest(t, delivery, clock)

	ctx := context.Background()
	n := enqueueNotification(t, db, clock.Now().Add(-time.Minute))
	enqueueNotification(t, db, clock.Now().Add(time.Hour)) // еще не время

	stats := d.RunOnce(ctx)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, []string{"user@example.com"}, delivery.sent)

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, got.Status)
	assert.True(t, got.SentAt.Valid)
}

func TestRunOnce_SecondRunDoesNotResend(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	delivery := &captureDelivery{}
	d, db := setupDispatcherTest(t, delivery, clock)

	ctx := context.Background()
	enqueueNotification(t, db, clock.Now().Add(-time.Minute))

	first := d.RunOnce(ctx)
	assert.Equal(t, 1, first.Sent)

	second := d.RunOnce(ctx)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, delivery.count())
}

func TestRunOnce_FailureIncrementsAttempts(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	delivery := &captureDelivery{err: errors.New("gateway down")}
	d, db := setupDispatcherTest(t, delivery, clock)

	ctx := context.Background()
	n := enqueueNotification(t, db, clock.Now().Add(-time.Minute))

	stats := d.RunOnce(ctx)
	assert.Equal(t, 1, stats.Failed)

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestRunOnce_BackoffDelaysRetry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	delivery := &captureDelivery{err: errors.New("gateway down")}
	d, db := setupDispatcherTest(t, delivery, clock)

	ctx := context.Background()
	enqueueNotification(t, db, clock.Now().Add(-time.Second))

	stats := d.RunOnce(ctx)
	require.Equal(t, 1, stats.Failed)

	// Повтор сразу — откладывается по бэкоффу
	stats = d.RunOnce(ctx)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)

	// После паузы доставка восстановилась, уведомление уходит
	delivery.err = nil
	clock.advance(5 * time.Minute)
	stats = d.RunOnce(ctx)
	assert.Equal(t, 1, stats.Sent)
}

func TestRunOnce_ExhaustedAttemptsMarkedFailed(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	delivery := &captureDelivery{err: errors.New("gateway down")}
	d, db := setupDispatcherTest(t, delivery, clock)

	ctx := context.Background()
	n := enqueueNotification(t, db, clock.Now().Add(-time.Minute))

	for i := 0; i < 3; i++ {
		d.RunOnce(ctx)
		clock.advance(2 * time.Hour)
	}

	got, err := db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.Attempts)

	delivery.err = nil
	stats := d.RunOnce(ctx)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Sent)

	// Исчерпанное уведомление уходит в терминальный статус и больше не
	// возвращается в выборку
	got, err = db.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationFailed, got.Status)

	stats = d.RunOnce(ctx)
	assert.Equal(t, DispatchStats{}, stats)
}

func TestRunOnce_ExhaustedDoesNotStarveFreshNotifications(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	delivery := &captureDelivery{err: errors.New("gateway down")}
	_, db := setupDispatcherTest(t, delivery, clock)

	logger := zerolog.Nop()
	retry := RetryPolicy{MaxAttempts: 3, InitialDelay: 30 * time.Second, MaxDelay: time.Hour}
	// Батч размером в одно уведомление: исчерпанное стоит в голове выборки
	d := NewDispatcher(db, delivery, clock, 15*time.Minute, 1, retry, &logger)

	ctx := context.Background()
	poisoned := enqueueNotification(t, db, clock.Now().Add(-time.Hour))
	for i := 0; i < 3; i++ {
		require.NoError(t, db.IncrementNotificationAttempts(ctx, poisoned.ID))
	}

	delivery.err = nil
	fresh := enqueueNotification(t, db, clock.Now().Add(-time.Minute))

	for i := 0; i < 2; i++ {
		d.RunOnce(ctx)
		clock.advance(15 * time.Minute)
	}

	got, err := db.GetNotification(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, got.Status)

	got, err = db.GetNotification(ctx, poisoned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationFailed, got.Status)
}

func TestRetryPolicy_NextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: 30 * time.Second, MaxDelay: 5 * time.Minute, BackoffFactor: 2}

	assert.Equal(t, 30*time.Second, policy.NextDelay(1))
	assert.Equal(t, time.Minute, policy.NextDelay(2))
	assert.Equal(t, 2*time.Minute, policy.NextDelay(3))
	// Ограничение сверху
	assert.Equal(t, 5*time.Minute, policy.NextDelay(10))
}
