package alerts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"naijaedu/alerts-service/internal/model"
	"naijaedu/alerts-service/internal/savedsearch"
	"naijaedu/alerts-service/internal/search"
	"naijaedu/alerts-service/internal/store"
)

var testIndexes = savedsearch.Indexes{
	model.KindPrograms:     "programs",
	model.KindInstitutions: "institutions",
}

func hit(id string, at time.Time) model.IndexHit {
	return model.IndexHit{ID: id, Name: "Programme " + id, CreatedAt: model.Timestamp{Time: at}}
}

// ── index ────────────────────────────────────────────────────────────────────

type fakeIndex struct {
	mu      sync.Mutex
	byQuery map[string][]model.IndexHit
	fail    map[string]error
	calls   int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{byQuery: map[string][]model.IndexHit{}, fail: map[string]error{}}
}

func (f *fakeIndex) Search(_ context.Context, req search.Request) (*search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[req.Query]; err != nil {
		return nil, err
	}
	hits := f.byQuery[req.Query]
	return &search.Result{Hits: hits, Total: len(hits)}, nil
}

// ── store ────────────────────────────────────────────────────────────────────

type memStore struct {
	mu          sync.Mutex
	searches    map[string]*model.SavedSearch
	users       map[string]model.UserProfile
	programs    []model.Program
	bookmarks   map[string][]string
	bookmarkErr map[string]error
	casConflict bool
}

func newMemStore() *memStore {
	return &memStore{
		searches:    map[string]*model.SavedSearch{},
		users:       map[string]model.UserProfile{},
		bookmarks:   map[string][]string{},
		bookmarkErr: map[string]error{},
	}
}

func (m *memStore) addSearch(ss model.SavedSearch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[ss.ID] = &ss
}

func (m *memStore) addUser(id, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = model.UserProfile{ID: id, Email: email, FullName: "User " + id}
}

func (m *memStore) search(id string) model.SavedSearch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.searches[id]
}

func (m *memStore) ListActiveNotifiableSavedSearches(context.Context) ([]model.SavedSearch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SavedSearch
	for _, ss := range m.searches {
		if ss.NotifyOnNewResults && ss.DeletedAt == nil {
			out = append(out, *ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateWatermark(_ context.Context, id string, prev *time.Time, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.casConflict {
		return store.ErrWatermarkConflict
	}
	ss, ok := m.searches[id]
	if !ok {
		return store.ErrNotFound
	}
	cur := ss.LastNotifiedAt
	if (cur == nil) != (prev == nil) || (cur != nil && !cur.Equal(*prev)) {
		return store.ErrWatermarkConflict
	}
	ss.LastNotifiedAt = &next
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) ListProgramsWithDeadlineIn(_ context.Context, from, to time.Time) ([]model.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Program
	for _, p := range m.programs {
		if !p.ApplicationDeadline.Before(from) && !p.ApplicationDeadline.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListBookmarkOwners(_ context.Context, entityType, entityID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entityType != "program" {
		return nil, errors.New("unexpected entity type " + entityType)
	}
	if err := m.bookmarkErr[entityID]; err != nil {
		return nil, err
	}
	return m.bookmarks[entityID], nil
}

// ── notifier ─────────────────────────────────────────────────────────────────

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []model.NotificationMessage
	fail   map[string]error
	onSend func()
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{fail: map[string]error{}}
}

func (n *fakeNotifier) Send(_ context.Context, msg model.NotificationMessage) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onSend != nil {
		n.onSend()
	}
	if err := n.fail[msg.To]; err != nil {
		return "", err
	}
	n.sent = append(n.sent, msg)
	return "<test@localhost>", nil
}

func (n *fakeNotifier) messages() []model.NotificationMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.NotificationMessage(nil), n.sent...)
}

// ── locker / publisher ───────────────────────────────────────────────────────

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released []string
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[key] {
		return nil, false, nil
	}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released = append(l.released, key)
	}, true, nil
}

type published struct {
	eventType string
	payload   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{eventType, payload})
	return nil
}

// ── harness ──────────────────────────────────────────────────────────────────

type harness struct {
	index     *fakeIndex
	store     *memStore
	notifier  *fakeNotifier
	locker    *fakeLocker
	publisher *fakePublisher
	orch      *Orchestrator
	cascade   *Cascade
}

func newHarness(workers int) *harness {
	h := &harness{
		index:     newFakeIndex(),
		store:     newMemStore(),
		notifier:  newFakeNotifier(),
		locker:    &fakeLocker{held: map[string]bool{}},
		publisher: &fakePublisher{},
	}
	logger := zap.NewNop()
	composer := NewComposer("https://naijaedu.test")
	opts := Options{Workers: workers, ItemTimeout: 5 * time.Second}

	detector := NewDetector(h.index, testIndexes, 0)
	dispatcher := NewDispatcher(h.store, h.store, h.notifier, composer, logger)
	h.orch = NewOrchestrator(h.store, detector, dispatcher, h.locker, h.publisher, opts, logger)
	h.cascade = NewCascade(h.store, h.store, h.notifier, composer, h.publisher, opts, logger)
	return h
}

func (h *harness) at(t time.Time) {
	h.orch.now = func() time.Time { return t }
	h.cascade.now = func() time.Time { return t }
}
