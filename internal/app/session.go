// Package app ties the engine together: one Session owns the layer store,
// the compositor and its scheduler, the scene with its publisher, and the
// preview renderer, and reports what happens through an event bus.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"garment-configurator/internal/assets"
	"garment-configurator/internal/composite"
	"garment-configurator/internal/config"
	"garment-configurator/internal/layer"
	"garment-configurator/internal/live"
	"garment-configurator/internal/logging"
	"garment-configurator/internal/publish"
	"garment-configurator/internal/render"
	"garment-configurator/internal/scene"
)

// EventType identifies session events.
type EventType int

const (
	// EventCompositeReady carries the *composite.Result just rendered.
	EventCompositeReady EventType = iota
	// EventPublished carries the number of regions that received it.
	EventPublished
	// EventModelChanged carries the new *scene.Model, or nil.
	EventModelChanged
	// EventLoadFailed carries a LoadError.
	EventLoadFailed
	EventProjectLoaded
	EventProjectSaved
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// LoadError reports an image that could not be loaded into a layer.
type LoadError struct {
	ID   layer.ID
	Name string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("load %q into layer %d: %v", e.Name, e.ID, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }

// Session is one configurator document and the pipeline that renders it.
type Session struct {
	Store      *layer.Store
	Scene      *scene.Scene
	Compositor *composite.Compositor
	Scheduler  *composite.Scheduler
	Publisher  *publish.Publisher
	Renderer   *render.Renderer
	Loader     *assets.Loader

	cfg config.Config

	mu          sync.RWMutex
	hub         *live.Hub
	latest      *composite.Result
	projectPath string
	garmentID   string
	modified    bool
	listeners   map[EventType][]EventListener
}

// NewSession builds the pipeline described by cfg. loader may be nil when
// the session never loads images.
func NewSession(cfg config.Config, loader *assets.Loader) (*Session, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	s := &Session{
		Store:     layer.NewStore(),
		Scene:     scene.New(cfg.Texture.TargetTags),
		Renderer:  render.New(),
		Loader:    loader,
		cfg:       cfg,
		listeners: make(map[EventType][]EventListener),
	}
	s.Compositor = composite.New(backend, cfg.Canvas.Size)
	s.Scene.SetReleaser(s.Renderer)
	s.Publisher = publish.New(s.Scene, s.Renderer, cfg.Publish())
	s.Scheduler = composite.NewScheduler(s.Compositor, s.Store, s.onComposite)
	s.Scheduler.Watch(s.Store)

	s.Store.OnAny(func(layer.Change) { s.SetModified(true) })
	s.Scene.OnModelChange(func(m *scene.Model) {
		s.Publisher.ModelReleased()
		s.Scheduler.Invalidate()
		s.Emit(EventModelChanged, m)
	})
	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() config.Config { return s.cfg }

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetHub attaches a live preview hub that receives every composite.
func (s *Session) SetHub(h *live.Hub) {
	s.mu.Lock()
	s.hub = h
	latest := s.latest
	s.mu.Unlock()
	if h != nil && latest != nil {
		_ = h.Broadcast(latest)
	}
}

// onComposite is the scheduler sink: publish to the scene, then fan out.
func (s *Session) onComposite(res *composite.Result) {
	s.mu.Lock()
	s.latest = res
	hub := s.hub
	s.mu.Unlock()

	s.Emit(EventCompositeReady, res)
	n := s.Publisher.Publish(res)
	s.Emit(EventPublished, n)
	if hub != nil {
		if err := hub.Broadcast(res); err != nil {
			logging.Logger().Warn("live broadcast failed", "err", err)
		}
	}
}

// Run re-renders on every store change until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.Scheduler.Notify()
	err := s.Scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Flush renders synchronously if anything changed since the last render.
func (s *Session) Flush() *composite.Result {
	return s.Scheduler.Flush()
}

// Latest returns the newest composite, or nil before the first render.
func (s *Session) Latest() *composite.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Preview renders the scene with the published composite applied.
func (s *Session) Preview(opts render.Options) (image.Image, error) {
	return s.Renderer.Render(s.Scene, opts)
}

// LoadInto starts loading name into layer id in the background. Failures
// are reported as EventLoadFailed. The returned channel is closed when the
// load has been applied or dropped.
func (s *Session) LoadInto(ctx context.Context, id layer.ID, name string) <-chan struct{} {
	done := make(chan struct{})
	if s.Loader == nil {
		s.Emit(EventLoadFailed, LoadError{ID: id, Name: name, Err: errors.New("no image source configured")})
		close(done)
		return done
	}
	results := s.Loader.LoadAsync(ctx, id, name)
	go func() {
		defer close(done)
		res, ok := <-results
		if !ok {
			return
		}
		if err := s.Loader.Apply(s.Store, res); err != nil {
			s.Emit(EventLoadFailed, LoadError{ID: id, Name: name, Err: err})
		}
	}()
	return done
}

// SelectGarment loads g's meshes from root and makes it the scene model.
func (s *Session) SelectGarment(root string, g scene.Garment) error {
	m, err := scene.LoadModel(root, g)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.garmentID = g.ID
	s.mu.Unlock()
	s.Scene.SetModel(m)
	s.SetModified(true)
	return nil
}

// UsePanelModel shows the built-in front/back panel model.
func (s *Session) UsePanelModel() {
	s.mu.Lock()
	s.garmentID = ""
	s.mu.Unlock()
	s.Scene.SetModel(scene.PanelModel())
}

// GarmentID returns the selected catalog garment, if any.
func (s *Session) GarmentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.garmentID
}

// SetModified marks the document as modified and emits an event.
func (s *Session) SetModified(modified bool) {
	s.mu.Lock()
	changed := s.modified != modified
	s.modified = modified
	s.mu.Unlock()
	if changed {
		s.Emit(EventModified, modified)
	}
}

// Modified reports unsaved changes.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// ProjectPath returns the file the session was last saved to or loaded from.
func (s *Session) ProjectPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectPath
}

// Close releases the compositor surfaces.
func (s *Session) Close() error {
	return s.Compositor.Close()
}
