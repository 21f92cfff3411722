package alerts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/events"
	"naijaedu/alerts-service/internal/mailer"
	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/store"
)

// Urgency grades a deadline alert.
type Urgency string

const (
	UrgencyUrgent   Urgency = "urgent"
	UrgencyReminder Urgency = "reminder"
)

const (
	// UrgentThresholdDays is the largest days-remaining value that is urgent.
	UrgentThresholdDays = 3

	MinDaysBefore = 1
	MaxDaysBefore = 30

	bookmarkEntityProgram = "program"
)

// Classify maps days remaining to an urgency.
func Classify(daysRemaining int) Urgency {
	if daysRemaining <= UrgentThresholdDays {
		return UrgencyUrgent
	}
	return UrgencyReminder
}

// DaysRemaining returns the whole days between now and deadline, rounded down.
func DaysRemaining(deadline, now time.Time) int {
	return int(math.Floor(deadline.Sub(now).Hours() / 24))
}

// Cascade sends application-deadline alerts to everyone who bookmarked a
// programme closing soon.
type Cascade struct {
	programs  DeadlineStore
	users     UserStore
	notifier  mailer.Notifier
	composer  *Composer
	publisher Publisher // optional
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewCascade returns a Cascade. publisher may be nil.
func NewCascade(programs DeadlineStore, users UserStore, notifier mailer.Notifier, composer *Composer, publisher Publisher, opts Options, logger *zap.Logger) *Cascade {
	return &Cascade{
		programs:  programs,
		users:     users,
		notifier:  notifier,
		composer:  composer,
		publisher: publisher,
		opts:      opts.withDefaults(),
		logger:    logger.Named("deadline"),
		now:       time.Now,
	}
}

type recipient struct {
	program model.Program
	userID  string
}

// SendDeadlineAlerts alerts bookmark owners of programmes whose deadline
// falls within the next daysBefore days. Each (programme, user) pair is
// isolated: one failure never stops the rest.
func (c *Cascade) SendDeadlineAlerts(ctx context.Context, daysBefore int) (model.DeadlineSummary, error) {
	now := c.now().UTC()
	sum := model.DeadlineSummary{StartedAt: now}
	if daysBefore < MinDaysBefore || daysBefore > MaxDaysBefore {
		return sum, fmt.Errorf("%w: got %d", ErrInvalidWindow, daysBefore)
	}

	programs, err := c.programs.ListProgramsWithDeadlineIn(ctx, now, now.Add(time.Duration(daysBefore)*24*time.Hour))
	if err != nil {
		return sum, fmt.Errorf("load programs: %w", err)
	}
	sum.Programs = len(programs)
	c.logger.Info("deadline run started", zap.Int("programs", len(programs)), zap.Int("daysBefore", daysBefore))

	var (
		items        []recipient
		lookupFailed int
		partial      bool
	)
	for _, p := range programs {
		if ctx.Err() != nil {
			partial = true
			break
		}
		owners, err := c.programs.ListBookmarkOwners(ctx, bookmarkEntityProgram, p.ID)
		if err != nil {
			c.logger.Warn("bookmark owner lookup failed", zap.String("programId", p.ID), zap.Error(err))
			deadlineRecipients.WithLabelValues(OutcomeFailed.String()).Inc()
			lookupFailed++
			continue
		}
		for _, uid := range owners {
			items = append(items, recipient{program: p, userID: uid})
		}
	}

	t, dropped := fanOut(ctx, len(items), c.opts.Workers, func(i int) Outcome {
		out := c.alertOne(ctx, items[i], now)
		deadlineRecipients.WithLabelValues(out.String()).Inc()
		return out
	})

	sum.Sent = t.get(OutcomeSent)
	sum.Failed = t.get(OutcomeFailed) + lookupFailed
	sum.Partial = partial || dropped
	sum.Duration = c.now().Sub(now)

	runDuration.WithLabelValues(jobDeadline).Observe(sum.Duration.Seconds())
	if sum.Partial {
		runPartial.WithLabelValues(jobDeadline).Inc()
	}
	c.logger.Info("deadline run complete",
		zap.Int("programs", sum.Programs),
		zap.Int("sent", sum.Sent),
		zap.Int("failed", sum.Failed),
		zap.Bool("partial", sum.Partial),
		zap.Duration("duration", sum.Duration),
	)
	publish(ctx, c.publisher, c.logger, events.EventDeadlineRun, sum)
	return sum, nil
}

func (c *Cascade) alertOne(ctx context.Context, r recipient, now time.Time) Outcome {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ItemTimeout)
	defer cancel()

	log := c.logger.With(zap.String("programId", r.program.ID), zap.String("userId", r.userID))
	if err := c.send(ictx, r, now); err != nil {
		log.Warn("deadline alert failed", zap.Error(err))
		return OutcomeFailed
	}
	return OutcomeSent
}

func (c *Cascade) send(ctx context.Context, r recipient, now time.Time) error {
	p := r.program
	if p.InstitutionName == nil || *p.InstitutionName == "" {
		return fmt.Errorf("%w: institution %s", ErrInstitutionUnresolved, p.InstitutionID)
	}

	u, err := c.users.GetUser(ctx, r.userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: user %s not found", ErrRecipientUnresolvable, r.userID)
	}
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	if u.Email == "" {
		return fmt.Errorf("%w: user %s has no email", ErrRecipientUnresolvable, r.userID)
	}

	days := max(0, DaysRemaining(p.ApplicationDeadline, now))
	msg := c.composer.Deadline(*u, p, *p.InstitutionName, days, Classify(days))
	if _, err := c.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrTransientDispatch, err)
	}
	return nil
}
