package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"garment-configurator/internal/assets"
	"garment-configurator/internal/layer"
	"garment-configurator/internal/logging"
)

// DefaultSettle is how long a source file must stay quiet before it is
// reloaded. Editors often write a file in several steps.
const DefaultSettle = 150 * time.Millisecond

// Reloader watches the files behind layer sources and swaps in the new
// pixels when one changes on disk, keeping the layer's transform.
type Reloader struct {
	store   *layer.Store
	dir     assets.DirSource
	loader  *assets.Loader
	watcher *fsnotify.Watcher
	settle  time.Duration

	mu      sync.Mutex
	watched map[string]bool
	timers  map[string]*time.Timer
	reloads int
}

// NewReloader creates a reloader for images served from dir. Call Watch to
// follow the store and Run to process file events.
func NewReloader(store *layer.Store, dir assets.DirSource, loader *assets.Loader) (*Reloader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Reloader{
		store:   store,
		dir:     dir,
		loader:  loader,
		watcher: w,
		settle:  DefaultSettle,
		watched: make(map[string]bool),
		timers:  make(map[string]*time.Timer),
	}, nil
}

// SetSettle overrides DefaultSettle.
func (r *Reloader) SetSettle(d time.Duration) { r.settle = d }

// Watch keeps the watched directories in step with the store's layer
// sources.
func (r *Reloader) Watch() {
	r.store.On(layer.EventSourceChanged, func(layer.Change) { r.Sync() })
	r.store.On(layer.EventLayerRemoved, func(layer.Change) { r.Sync() })
	r.Sync()
}

// Sync adds a watch for the directory of every layer source. Directories
// are never unwatched; events for files no layer uses are ignored.
func (r *Reloader) Sync() {
	for _, l := range r.store.Layers() {
		if l.Source == "" {
			continue
		}
		p, err := r.dir.Path(l.Source)
		if err != nil {
			continue
		}
		dir := filepath.Dir(p)
		r.mu.Lock()
		seen := r.watched[dir]
		r.watched[dir] = true
		r.mu.Unlock()
		if seen {
			continue
		}
		if err := r.watcher.Add(dir); err != nil {
			logging.Logger().Warn("cannot watch image directory", "dir", dir, "err", err)
			r.mu.Lock()
			delete(r.watched, dir)
			r.mu.Unlock()
		}
	}
}

// Reloads returns the number of layer images refreshed so far.
func (r *Reloader) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

// Run processes file events until ctx is cancelled, then closes the
// watcher.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			r.stopTimers()
			return nil
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				r.schedule(ctx, filepath.Clean(ev.Name))
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger().Warn("file watch error", "err", err)
		}
	}
}

func (r *Reloader) schedule(ctx context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[path]; ok {
		t.Reset(r.settle)
		return
	}
	r.timers[path] = time.AfterFunc(r.settle, func() {
		r.mu.Lock()
		delete(r.timers, path)
		r.mu.Unlock()
		r.reload(ctx, path)
	})
}

func (r *Reloader) stopTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p, t := range r.timers {
		t.Stop()
		delete(r.timers, p)
	}
}

// reload refreshes every layer whose source resolves to path.
func (r *Reloader) reload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	log := logging.Logger()
	for _, l := range r.store.Layers() {
		if l.Source == "" {
			continue
		}
		p, err := r.dir.Path(l.Source)
		if err != nil || p != path {
			continue
		}
		img, _, err := r.loader.Fetch(ctx, l.Source)
		if err != nil {
			// A half-written file fails to decode; the final write retries.
			log.Debug("reload skipped", "layer", l.ID, "path", path, "err", err)
			continue
		}
		if err := r.store.RefreshImage(l.ID, img); err != nil {
			continue
		}
		r.mu.Lock()
		r.reloads++
		r.mu.Unlock()
		log.Info("layer image reloaded", "layer", l.ID, "path", path)
	}
}
