// Package mailer delivers alert emails.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"naijaedu/alerts-service/internal/model"
)

// Notifier sends one message and returns the provider message id.
type Notifier interface {
	Send(ctx context.Context, msg model.NotificationMessage) (string, error)
}

// LogMailer logs messages instead of sending them. It is used when no SMTP
// host is configured so local runs exercise the whole pipeline.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mailer")}
}

// Send implements Notifier.
func (m *LogMailer) Send(_ context.Context, msg model.NotificationMessage) (string, error) {
	id := newMessageID("localhost")
	m.logger.Info("SMTP not configured, email logged only",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("messageId", id),
	)
	return id, nil
}

// RateLimited throttles an inner Notifier to a fixed send rate shared by all
// workers.
type RateLimited struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token bucket of perSec messages per second.
func NewRateLimited(next Notifier, perSec float64) *RateLimited {
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSec), max(1, int(perSec))),
	}
}

// Send implements Notifier.
func (r *RateLimited) Send(ctx context.Context, msg model.NotificationMessage) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("mail rate limiter: %w", err)
	}
	return r.next.Send(ctx, msg)
}
