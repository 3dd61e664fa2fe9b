package worker

import (
	"context"
	"errors"
	"time"

	"gymbook/internal/database"
	"gymbook/internal/domain"
	"gymbook/internal/metrics"
	"gymbook/internal/models"

	"github.com/rs/zerolog"
)

// Dispatcher polls the notification queue and hands due notifications to
// the delivery collaborator. MarkNotificationSent is the commit point: its
// pending→sent transition is a conditional update, so overlapping runs or
// a rerun after a crash cannot double-send.
type Dispatcher struct {
	repo         domain.Repository
	delivery     domain.Delivery
	clock        domain.Clock
	users        userResolver
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

type userResolver interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

func NewDispatcher(repo domain.Repository, delivery domain.Delivery, clock domain.Clock, pollInterval time.Duration, batchSize int, retry RetryPolicy, logger *zerolog.Logger) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Duration(models.DispatchIntervalMinutes) * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 30 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Hour
	}
	return &Dispatcher{
		repo:         repo,
		delivery:     delivery,
		clock:        clock,
		users:        repo,
		retryPolicy:  retry,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start runs the dispatch loop until ctx is done. The interval is a bound
// on delivery delay, not an exact-time guarantee.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info().Dur("interval", d.pollInterval).Msg("notification dispatcher started")
	defer d.logger.Info().Msg("notification dispatcher stopped")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	// Первый проход сразу: после рестарта могли накопиться просроченные
	d.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of due notifications. A failure on one item
// is logged and counted but never blocks the rest of the batch.
func (d *Dispatcher) RunOnce(ctx context.Context) DispatchStats {
	now := d.clock.Now()
	due, err := d.repo.DueNotifications(ctx, now, d.batchSize)
	if err != nil {
		d.logger.Error().Err(err).Msg("fetch due notifications failed")
		return DispatchStats{}
	}

	var stats DispatchStats
	for _, n := range due {
		switch d.dispatchOne(ctx, n, now) {
		case dispatchSent:
			stats.Sent++
		case dispatchFailed:
			stats.Failed++
		case dispatchSkipped:
			stats.Skipped++
		}
	}

	if stats.Sent > 0 || stats.Failed > 0 {
		d.logger.Info().Int("sent", stats.Sent).Int("failed", stats.Failed).
			Int("skipped", stats.Skipped).Msg("dispatch cycle finished")
	}
	return stats
}

// DispatchStats aggregates one cycle; per-item errors are not surfaced.
type DispatchStats struct {
	Sent    int
	Failed  int
	Skipped int
}

type dispatchResult int

const (
	dispatchSent dispatchResult = iota
	dispatchFailed
	dispatchSkipped
)

func (d *Dispatcher) dispatchOne(ctx context.Context, n *models.Notification, now time.Time) dispatchResult {
	if n.Attempts >= d.retryPolicy.MaxAttempts {
		// Иначе такое уведомление навсегда занимает место в начале выборки
		// и при полном батче вытесняет свежие
		if err := d.repo.MarkNotificationFailed(ctx, n.ID); err != nil && !errors.Is(err, database.ErrConcurrentModification) {
			d.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("mark notification failed errored")
		}
		d.logger.Warn().Int64("notification_id", n.ID).Str("type", n.Type).
			Int("attempts", n.Attempts).Msg("notification retries exhausted")
		metrics.IncNotification("exhausted")
		return dispatchSkipped
	}
	// Неудачные попытки откладываются по экспоненте от scheduled_for
	if n.Attempts > 0 && now.Before(n.ScheduledFor.Add(d.retryPolicy.NextDelay(n.Attempts))) {
		return dispatchSkipped
	}

	destination := d.resolveDestination(ctx, n.UserID)

	if err := d.delivery.Send(ctx, destination, n.Title, n.Body); err != nil {
		d.logger.Error().Err(err).Int64("notification_id", n.ID).
			Str("type", n.Type).Msg("delivery failed")
		if incErr := d.repo.IncrementNotificationAttempts(ctx, n.ID); incErr != nil {
			d.logger.Error().Err(incErr).Int64("notification_id", n.ID).Msg("increment attempts failed")
		}
		metrics.IncNotification("failed")
		return dispatchFailed
	}

	if err := d.repo.MarkNotificationSent(ctx, n.ID, d.clock.Now()); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			// Параллельный цикл уже зафиксировал отправку
			metrics.IncNotification("skipped")
			return dispatchSkipped
		}
		d.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("mark sent failed")
		metrics.IncNotification("failed")
		return dispatchFailed
	}

	metrics.IncNotification("sent")
	return dispatchSent
}

func (d *Dispatcher) resolveDestination(ctx context.Context, userID int64) string {
	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		d.logger.Warn().Err(err).Int64("user_id", userID).Msg("resolve destination failed")
		return ""
	}
	return user.Email
}
