package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/mailer"
	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/store"
)

// Dispatcher notifies a saved search's owner about new hits and advances the
// watermark once the message is out.
type Dispatcher struct {
	users      UserStore
	watermarks WatermarkStore
	notifier   mailer.Notifier
	composer   *Composer
	logger     *zap.Logger
}

// NewDispatcher returns a Dispatcher.
func NewDispatcher(users UserStore, watermarks WatermarkStore, notifier mailer.Notifier, composer *Composer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		users:      users,
		watermarks: watermarks,
		notifier:   notifier,
		composer:   composer,
		logger:     logger.Named("dispatcher"),
	}
}

// Dispatch sends one email for delta and moves last_notified_at forward.
//
// sent is true once the notifier accepted the message, even when the
// watermark update then loses a race (err wraps store.ErrWatermarkConflict).
// On any failure before that the watermark is left alone so the same hits
// are picked up again by the next run.
func (d *Dispatcher) Dispatch(ctx context.Context, ss model.SavedSearch, delta DeltaResult, runAt time.Time) (bool, error) {
	if !ss.NotifyOnNewResults || !delta.HasNew() {
		return false, nil
	}

	u, err := d.users.GetUser(ctx, ss.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("%w: user %s not found", ErrRecipientUnresolvable, ss.OwnerID)
	}
	if err != nil {
		return false, fmt.Errorf("resolve owner: %w", err)
	}
	if u.Email == "" {
		return false, fmt.Errorf("%w: user %s has no email", ErrRecipientUnresolvable, ss.OwnerID)
	}

	msg := d.composer.SavedSearch(*u, ss, delta.Hits)
	messageID, err := d.notifier.Send(ctx, msg)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTransientDispatch, err)
	}

	next := nextWatermark(runAt, delta.Newest(), ss.LastNotifiedAt)
	if err := d.watermarks.UpdateWatermark(ctx, ss.ID, ss.LastNotifiedAt, next); err != nil {
		d.logger.Warn("notification sent but watermark not advanced",
			zap.String("savedSearchId", ss.ID),
			zap.String("messageId", messageID),
			zap.Error(err),
		)
		return true, err
	}

	d.logger.Info("saved search notification sent",
		zap.String("savedSearchId", ss.ID),
		zap.String("messageId", messageID),
		zap.Int("newResults", len(delta.Hits)),
		zap.Time("watermark", next),
	)
	return true, nil
}

// nextWatermark never moves backwards and always covers every hit that was
// just announced, even when index clocks run ahead of ours.
func nextWatermark(runAt, newest time.Time, prev *time.Time) time.Time {
	next := runAt
	if newest.After(next) {
		next = newest
	}
	if prev != nil && prev.After(next) {
		next = *prev
	}
	return next.UTC()
}
