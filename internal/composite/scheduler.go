package composite

import (
	"context"
	"sync"

	"garment-configurator/internal/layer"
	"garment-configurator/internal/logging"
)

// Source provides the snapshot to render.
type Source interface {
	Snapshot() layer.Snapshot
}

// Sink receives each completed composite.
type Sink func(*Result)

// Scheduler re-renders whenever it is notified. Notifications arriving while
// a render is running collapse into a single follow-up render of the latest
// snapshot, so intermediate states may be skipped but the final one never is.
type Scheduler struct {
	comp   *Compositor
	src    Source
	sink   Sink
	signal chan struct{}

	// flushMu serializes whole flushes so the sink sees versions in order.
	flushMu sync.Mutex

	mu          sync.Mutex
	lastVersion uint64
	rendered    bool
	force       bool
}

// NewScheduler creates a scheduler. sink may be nil.
func NewScheduler(comp *Compositor, src Source, sink Sink) *Scheduler {
	return &Scheduler{
		comp:   comp,
		src:    src,
		sink:   sink,
		signal: make(chan struct{}, 1),
	}
}

// Watch subscribes the scheduler to every mutation of store.
func (s *Scheduler) Watch(store *layer.Store) {
	store.OnAny(func(layer.Change) { s.Notify() })
}

// Notify requests a render. It never blocks.
func (s *Scheduler) Notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Invalidate requests a render even if the store has not changed, e.g.
// after the texture targets were swapped.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	s.force = true
	s.mu.Unlock()
	s.Notify()
}

// Run renders on every notification until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.signal:
			s.Flush()
		}
	}
}

// Flush renders the current snapshot now, unless it was already rendered
// and nothing forced a re-render. It returns the new result or nil.
func (s *Scheduler) Flush() *Result {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	snap := s.src.Snapshot()

	s.mu.Lock()
	if s.rendered && !s.force && snap.Version == s.lastVersion {
		s.mu.Unlock()
		return nil
	}
	s.force = false
	s.mu.Unlock()

	res := s.comp.Render(snap)

	s.mu.Lock()
	s.rendered = true
	s.lastVersion = snap.Version
	s.mu.Unlock()

	if s.sink != nil {
		s.sink(res)
	} else {
		logging.Logger().Debug("composite dropped, no sink", "generation", res.Generation)
	}
	return res
}
