package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/events"
	"naijaedu/alerts-service/internal/model"
)

const publishTimeout = 5 * time.Second

// Orchestrator runs one saved-search pass over every notifiable search.
type Orchestrator struct {
	searches   SavedSearchLister
	detector   *Detector
	dispatcher *Dispatcher
	locker     Locker    // optional
	publisher  Publisher // optional
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrchestrator returns an Orchestrator. locker and publisher may be nil.
func NewOrchestrator(searches SavedSearchLister, detector *Detector, dispatcher *Dispatcher, locker Locker, publisher Publisher, opts Options, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		searches:   searches,
		detector:   detector,
		dispatcher: dispatcher,
		locker:     locker,
		publisher:  publisher,
		opts:       opts.withDefaults(),
		logger:     logger.Named("orchestrator"),
		now:        time.Now,
	}
}

// ProcessAll checks every active saved search with notifications enabled.
// A failing item is counted and never stops the others. The error is non-nil
// only when the candidate list could not be loaded.
func (o *Orchestrator) ProcessAll(ctx context.Context) (model.RunSummary, error) {
	runAt := o.now().UTC()
	sum := model.RunSummary{StartedAt: runAt}

	list, err := o.searches.ListActiveNotifiableSavedSearches(ctx)
	if err != nil {
		return sum, fmt.Errorf("load saved searches: %w", err)
	}
	o.logger.Info("saved search run started", zap.Int("candidates", len(list)))

	t, partial := fanOut(ctx, len(list), o.opts.Workers, func(i int) Outcome {
		out := o.processOne(ctx, list[i], runAt)
		savedSearchItems.WithLabelValues(out.String()).Inc()
		return out
	})

	sum.Sent = t.get(OutcomeSent)
	sum.Failed = t.get(OutcomeFailed)
	sum.Skipped = t.get(OutcomeSkipped)
	sum.Checked = sum.Sent + sum.Failed + sum.Skipped + t.get(OutcomeNoChange)
	sum.Partial = partial
	sum.Duration = o.now().Sub(runAt)

	runDuration.WithLabelValues(jobSavedSearch).Observe(sum.Duration.Seconds())
	if partial {
		runPartial.WithLabelValues(jobSavedSearch).Inc()
	}
	o.logger.Info("saved search run complete",
		zap.Int("checked", sum.Checked),
		zap.Int("sent", sum.Sent),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
		zap.Bool("partial", sum.Partial),
		zap.Duration("duration", sum.Duration),
	)
	publish(ctx, o.publisher, o.logger, events.EventSavedSearchRun, sum)
	return sum, nil
}

// processOne takes one saved search through Checking and, when there is
// something new, Notifying. It runs detached from the run deadline.
func (o *Orchestrator) processOne(ctx context.Context, ss model.SavedSearch, runAt time.Time) Outcome {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.ItemTimeout)
	defer cancel()

	log := o.logger.With(zap.String("savedSearchId", ss.ID))
	if !ss.NotifyOnNewResults {
		return OutcomeNoChange
	}

	if o.locker != nil {
		release, ok, err := o.locker.TryLock(ictx, "saved-search:"+ss.ID, o.opts.LockTTL)
		switch {
		case err != nil:
			log.Warn("advisory lock unavailable, relying on watermark CAS", zap.Error(err))
		case !ok:
			log.Debug("saved search locked by another run, skipping")
			return OutcomeSkipped
		default:
			defer release()
		}
	}

	log.Debug("checking", zap.Time("watermark", ss.Watermark()))
	delta, err := o.detector.Detect(ictx, ss)
	if err != nil {
		log.Warn("delta detection failed", zap.Error(err))
		return OutcomeFailed
	}
	if !delta.HasNew() {
		log.Debug("no change", zap.Int("total", delta.Total))
		return OutcomeNoChange
	}

	log.Debug("notifying", zap.Int("newResults", len(delta.Hits)))
	sent, err := o.dispatcher.Dispatch(ictx, ss, delta, runAt)
	switch {
	case sent:
		return OutcomeSent
	case err != nil:
		if errors.Is(err, ErrRecipientUnresolvable) {
			log.Warn("owner cannot be notified", zap.Error(err))
		} else {
			log.Error("dispatch failed", zap.Error(err))
		}
		return OutcomeFailed
	default:
		return OutcomeNoChange
	}
}

// publish announces a finished run. Failures are logged only.
func publish(ctx context.Context, p Publisher, logger *zap.Logger, eventType string, payload any) {
	if p == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(pctx, eventType, payload); err != nil {
		logger.Warn("publish run event failed", zap.String("event", eventType), zap.Error(err))
	}
}
