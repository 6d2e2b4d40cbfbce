package layer

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"
	"sync"

	"garment-configurator/internal/logging"
	"garment-configurator/internal/transform"
)

// ErrLayerNotFound is returned by SetImage and RefreshImage for ids that are
// not in the store. Every other mutator treats unknown ids as a no-op.
var ErrLayerNotFound = errors.New("layer not found")

// EventType identifies the kind of store mutation.
type EventType int

const (
	EventLayerAdded EventType = iota
	EventLayerRemoved
	EventLayerMoved
	EventActiveChanged
	EventImageChanged
	EventVisibilityChanged
	EventOpacityChanged
	EventMaterialChanged
	EventTransformChanged
	EventRenamed
	EventSourceChanged
)

var eventNames = [...]string{
	"added", "removed", "moved", "active", "image",
	"visibility", "opacity", "material", "transform", "renamed",
	"source",
}

func (e EventType) String() string {
	if int(e) >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("EventType(%d)", int(e))
}

// Change describes one applied mutation.
type Change struct {
	Event   EventType
	ID      ID
	Version uint64
}

// Listener receives change notifications. It runs on the goroutine that
// performed the mutation, after the store lock has been released.
type Listener func(Change)

// Snapshot is a consistent copy of the stack at one store version.
type Snapshot struct {
	Version uint64
	Layers  []Layer
}

// Store is the ordered layer stack. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	layers  []*Layer
	nextID  ID
	version uint64

	listeners    map[EventType][]Listener
	anyListeners []Listener
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nextID:    1,
		listeners: make(map[EventType][]Listener),
	}
}

// On registers a listener for one event type.
func (s *Store) On(event EventType, listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// OnAny registers a listener for every mutation.
func (s *Store) OnAny(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anyListeners = append(s.anyListeners, listener)
}

func (s *Store) emit(c Change) {
	s.mu.RLock()
	ls := slices.Clone(s.listeners[c.Event])
	ls = append(ls, s.anyListeners...)
	s.mu.RUnlock()

	logging.Logger().Debug("layer store change", "event", c.Event, "layer", c.ID, "version", c.Version)
	for _, l := range ls {
		l(c)
	}
}

// bump must be called with the write lock held.
func (s *Store) bump(event EventType, id ID) Change {
	s.version++
	return Change{Event: event, ID: id, Version: s.version}
}

func (s *Store) indexOf(id ID) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// mutate runs fn on the layer with the given id under the write lock. fn
// reports whether it changed anything; only then is the version bumped and
// the event emitted.
func (s *Store) mutate(id ID, event EventType, fn func(l *Layer) bool) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	if !fn(s.layers[i]) {
		s.mu.Unlock()
		return false
	}
	c := s.bump(event, id)
	s.mu.Unlock()

	s.emit(c)
	return true
}

// AddLayer appends an empty layer named "Layer N" and returns its id. The
// layer is active only if the store was empty.
func (s *Store) AddLayer() ID {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	l := newLayer(id, fmt.Sprintf("Layer %d", len(s.layers)+1))
	l.Active = len(s.layers) == 0
	s.layers = append(s.layers, l)
	c := s.bump(EventLayerAdded, id)
	s.mu.Unlock()

	s.emit(c)
	return id
}

// SetActive makes id the only active layer. Unknown ids are ignored.
func (s *Store) SetActive(id ID) {
	s.mu.Lock()
	if s.indexOf(id) < 0 {
		s.mu.Unlock()
		return
	}
	changed := s.activate(id)
	if !changed {
		s.mu.Unlock()
		return
	}
	c := s.bump(EventActiveChanged, id)
	s.mu.Unlock()

	s.emit(c)
}

// activate must be called with the write lock held.
func (s *Store) activate(id ID) bool {
	changed := false
	for _, l := range s.layers {
		want := l.ID == id
		if l.Active != want {
			l.Active = want
			changed = true
		}
	}
	return changed
}

// SetImage assigns a decoded image to a layer, renames it, resets its
// transform and makes it active. The previous image is released.
func (s *Store) SetImage(id ID, img image.Image, name string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("set image on layer %d: %w", id, ErrLayerNotFound)
	}
	l := s.layers[i]
	old := l.Image
	l.Image = img
	if name != "" {
		l.Name = name
	}
	l.Transform = transform.Identity()
	s.activate(id)
	c := s.bump(EventImageChanged, id)
	s.mu.Unlock()

	if old != nil && old != img {
		release(old)
	}
	s.emit(c)
	return nil
}

// SetSource records where a layer's image was loaded from.
func (s *Store) SetSource(id ID, source string) {
	s.mutate(id, EventSourceChanged, func(l *Layer) bool {
		if l.Source == source {
			return false
		}
		l.Source = source
		return true
	})
}

// RefreshImage swaps in a reloaded image while keeping the layer's name,
// transform and activation.
func (s *Store) RefreshImage(id ID, img image.Image) error {
	var old image.Image
	ok := s.mutate(id, EventImageChanged, func(l *Layer) bool {
		old = l.Image
		l.Image = img
		return true
	})
	if !ok {
		return fmt.Errorf("refresh image on layer %d: %w", id, ErrLayerNotFound)
	}
	if old != nil && old != img {
		release(old)
	}
	return nil
}

// ToggleVisibility flips a layer's visible flag.
func (s *Store) ToggleVisibility(id ID) {
	s.mutate(id, EventVisibilityChanged, func(l *Layer) bool {
		l.Visible = !l.Visible
		return true
	})
}

// SetVisible sets the visible flag explicitly.
func (s *Store) SetVisible(id ID, visible bool) {
	s.mutate(id, EventVisibilityChanged, func(l *Layer) bool {
		if l.Visible == visible {
			return false
		}
		l.Visible = visible
		return true
	})
}

// SetOpacity sets the opacity, clamped to [0,1]. NaN is ignored.
func (s *Store) SetOpacity(id ID, value float64) {
	if math.IsNaN(value) {
		return
	}
	value = math.Max(0, math.Min(1, value))
	s.mutate(id, EventOpacityChanged, func(l *Layer) bool {
		if l.Opacity == value {
			return false
		}
		l.Opacity = value
		return true
	})
}

// SetMaterialType sets the material tag.
func (s *Store) SetMaterialType(id ID, m MaterialType) {
	s.mutate(id, EventMaterialChanged, func(l *Layer) bool {
		if l.Material == m {
			return false
		}
		l.Material = m
		return true
	})
}

// Rename changes a layer's display name.
func (s *Store) Rename(id ID, name string) {
	s.mutate(id, EventRenamed, func(l *Layer) bool {
		if name == "" || l.Name == name {
			return false
		}
		l.Name = name
		return true
	})
}

// SetTransform merges the set fields of patch into the layer's transform.
// The result is sanitized, so scale stays inside [MinScale, MaxScale] and
// rotation inside (-180, 180].
func (s *Store) SetTransform(id ID, patch transform.Patch) {
	if patch.Empty() {
		return
	}
	s.mutate(id, EventTransformChanged, func(l *Layer) bool {
		next := l.Transform.Merge(patch)
		if next == l.Transform {
			return false
		}
		l.Transform = next
		return true
	})
}

// ResetTransform restores the identity transform, clearing repeat mode.
func (s *Store) ResetTransform(id ID) {
	s.mutate(id, EventTransformChanged, func(l *Layer) bool {
		if l.Transform == transform.Identity() {
			return false
		}
		l.Transform = transform.Identity()
		return true
	})
}

// MoveLayer swaps a layer with its neighbour. Moving the first layer up or
// the last layer down does nothing.
func (s *Store) MoveLayer(id ID, dir Direction) {
	s.mu.Lock()
	i := s.indexOf(id)
	j := i + 1
	if dir == Up {
		j = i - 1
	}
	if i < 0 || j < 0 || j >= len(s.layers) {
		s.mu.Unlock()
		return
	}
	s.layers[i], s.layers[j] = s.layers[j], s.layers[i]
	c := s.bump(EventLayerMoved, id)
	s.mu.Unlock()

	s.emit(c)
}

// DeleteLayer removes a layer and releases its image. If it was active and
// layers remain, the new first layer becomes active.
func (s *Store) DeleteLayer(id ID) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	removed := s.layers[i]
	s.layers = slices.Delete(s.layers, i, i+1)
	if removed.Active && len(s.layers) > 0 {
		s.layers[0].Active = true
	}
	c := s.bump(EventLayerRemoved, id)
	s.mu.Unlock()

	if removed.Image != nil {
		release(removed.Image)
		removed.Image = nil
	}
	s.emit(c)
}

// Clear removes every layer.
func (s *Store) Clear() {
	for _, l := range s.Layers() {
		s.DeleteLayer(l.ID)
	}
}

// Layers returns copies of the layers in stack order.
func (s *Store) Layers() []Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLayers()
}

func (s *Store) copyLayers() []Layer {
	out := make([]Layer, len(s.layers))
	for i, l := range s.layers {
		out[i] = *l
	}
	return out
}

// Snapshot returns the layers together with the version they reflect.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Version: s.version, Layers: s.copyLayers()}
}

// Layer returns a copy of the layer with the given id.
func (s *Store) Layer(id ID) (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return *s.layers[i], true
	}
	return Layer{}, false
}

// Index returns the stack position of id, or -1.
func (s *Store) Index(id ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

// Active returns a copy of the active layer.
func (s *Store) Active() (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.layers {
		if l.Active {
			return *l, true
		}
	}
	return Layer{}, false
}

// Len returns the number of layers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Version returns the number of mutations applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
