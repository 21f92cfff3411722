package alerts

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// tally counts outcomes across workers.
type tally struct {
	mu     sync.Mutex
	counts [4]int
}

func (t *tally) add(o Outcome) {
	t.mu.Lock()
	t.counts[o]++
	t.mu.Unlock()
}

func (t *tally) get(o Outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[o]
}

// fanOut runs fn for items 0..n-1 with at most workers in flight. Once ctx is
// done no further items start; the ones already running finish on their own
// context. partial reports whether any item was left unstarted.
func fanOut(ctx context.Context, n, workers int, fn func(i int) Outcome) (t *tally, partial bool) {
	t = &tally{}
	var (
		mu      sync.Mutex
		dropped bool
	)
	drop := func() {
		mu.Lock()
		dropped = true
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			drop()
			break
		}
		i := i
		g.Go(func() error {
			// a slot may free up only after the deadline passed
			if ctx.Err() != nil {
				drop()
				return nil
			}
			t.add(fn(i))
			return nil
		})
	}
	_ = g.Wait()
	return t, dropped
}
