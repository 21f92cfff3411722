package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naijaedu/alerts-service/internal/events"
	"naijaedu/alerts-service/internal/model"
)

func ptr[T any](v T) *T { return &v }

func program(id string, deadline time.Time) model.Program {
	return model.Program{
		ID: id, InstitutionID: "inst-" + id, InstitutionName: ptr("University of Lagos"),
		Name: "Programme " + id, ApplicationDeadline: deadline,
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, UrgencyUrgent, Classify(0))
	assert.Equal(t, UrgencyUrgent, Classify(2))
	assert.Equal(t, UrgencyUrgent, Classify(3))
	assert.Equal(t, UrgencyReminder, Classify(4))
	assert.Equal(t, UrgencyReminder, Classify(30))
}

func TestDaysRemaining_RoundsDown(t *testing.T) {
	assert.Equal(t, 2, DaysRemaining(t0.Add(71*time.Hour), t0))
	assert.Equal(t, 3, DaysRemaining(t0.Add(72*time.Hour), t0))
	assert.Equal(t, 0, DaysRemaining(t0.Add(time.Hour), t0))
	assert.Equal(t, -1, DaysRemaining(t0.Add(-time.Hour), t0))
}

func TestSendDeadlineAlerts_RejectsWindowOutOfRange(t *testing.T) {
	h := newHarness(1)
	for _, d := range []int{0, -1, 31} {
		_, err := h.cascade.SendDeadlineAlerts(context.Background(), d)
		assert.ErrorIs(t, err, ErrInvalidWindow, d)
	}
}

func TestSendDeadlineAlerts_WindowAndUrgency(t *testing.T) {
	h := newHarness(2)
	h.at(t0)
	h.store.programs = []model.Program{
		program("soon", t0.Add(2*24*time.Hour+time.Hour)),
		program("later", t0.Add(5*24*time.Hour+time.Hour)),
		program("far", t0.Add(40*24*time.Hour)),
	}
	h.store.addUser("u1", "ada@example.com")
	h.store.bookmarks["soon"] = []string{"u1"}
	h.store.bookmarks["later"] = []string{"u1"}
	h.store.bookmarks["far"] = []string{"u1"}

	sum, err := h.cascade.SendDeadlineAlerts(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Programs)
	assert.Equal(t, 2, sum.Sent)
	assert.Zero(t, sum.Failed)

	subjects := map[string]bool{}
	for _, m := range h.notifier.messages() {
		subjects[m.Subject] = true
	}
	assert.True(t, subjects["Urgent: Programme soon application closes in 2 days"])
	assert.True(t, subjects["Reminder: Programme later application deadline in 5 days"])
}

func TestSendDeadlineAlerts_PerRecipientIsolation(t *testing.T) {
	h := newHarness(2)
	h.at(t0)
	h.store.programs = []model.Program{program("p", t0.Add(3*24*time.Hour))}
	h.store.addUser("u1", "ada@example.com")
	h.store.addUser("u2", "")
	h.store.bookmarks["p"] = []string{"u1", "u2"}

	sum, err := h.cascade.SendDeadlineAlerts(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
}

func TestSendDeadlineAlerts_BothRecipientsSent(t *testing.T) {
	h := newHarness(2)
	h.at(t0)
	h.store.programs = []model.Program{program("p", t0.Add(3*24*time.Hour))}
	h.store.addUser("u1", "ada@example.com")
	h.store.addUser("u2", "chidi@example.com")
	h.store.bookmarks["p"] = []string{"u1", "u2"}

	sum, err := h.cascade.SendDeadlineAlerts(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Sent)
	assert.Zero(t, sum.Failed)
}

func TestSendDeadlineAlerts_UnresolvedInstitutionFails(t *testing.T) {
	h := newHarness(1)
	h.at(t0)
	p := program("p", t0.Add(24*time.Hour))
	p.InstitutionName = nil
	h.store.programs = []model.Program{p}
	h.store.addUser("u1", "ada@example.com")
	h.store.bookmarks["p"] = []string{"u1"}

	sum, err := h.cascade.SendDeadlineAlerts(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, h.notifier.messages())
}

func TestSendDeadlineAlerts_OwnerLookupFailureContinues(t *testing.T) {
	h := newHarness(1)
	h.at(t0)
	h.store.programs = []model.Program{
		program("broken", t0.Add(24*time.Hour)),
		program("ok", t0.Add(24*time.Hour)),
	}
	h.store.addUser("u1", "ada@example.com")
	h.store.bookmarkErr["broken"] = errors.New("bookmarks unavailable")
	h.store.bookmarks["ok"] = []string{"u1"}

	sum, err := h.cascade.SendDeadlineAlerts(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Programs)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Failed)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, events.EventDeadlineRun, h.publisher.events[0].eventType)
}

func TestSendDeadlineAlerts_CancelledBeforeStart(t *testing.T) {
	h := newHarness(1)
	h.at(t0)
	h.store.programs = []model.Program{program("p", t0.Add(24*time.Hour))}
	h.store.addUser("u1", "ada@example.com")
	h.store.bookmarks["p"] = []string{"u1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := h.cascade.SendDeadlineAlerts(ctx, 7)
	require.NoError(t, err)
	assert.True(t, sum.Partial)
	assert.Zero(t, sum.Sent)
}
