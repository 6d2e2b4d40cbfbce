package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"garment-configurator/internal/layer"
	"garment-configurator/internal/logging"
)

// Result is the outcome of one asynchronous image load.
type Result struct {
	ID     layer.ID
	Name   string
	Source string
	Image  *image.RGBA
	MIME   string
	Err    error
}

// Request asks for name to be loaded into layer ID.
type Request struct {
	ID   layer.ID
	Name string
}

// Loader fetches and decodes layer images off the caller's goroutine.
type Loader struct {
	src      Source
	maxBytes int64
}

// NewLoader creates a loader reading from src. maxBytes <= 0 selects
// DefaultMaxBytes.
func NewLoader(src Source, maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{src: src, maxBytes: maxBytes}
}

// Source returns the loader's image source.
func (l *Loader) Source() Source { return l.src }

// Fetch reads and decodes name synchronously.
func (l *Loader) Fetch(ctx context.Context, name string) (*image.RGBA, string, error) {
	rc, err := l.src.Open(ctx, name)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()
	return Decode(rc, l.maxBytes)
}

// LoadAsync starts loading name for layer id and returns a channel that
// receives exactly one Result.
func (l *Loader) LoadAsync(ctx context.Context, id layer.ID, name string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		img, mime, err := l.Fetch(ctx, name)
		out <- Result{
			ID:     id,
			Name:   name,
			Source: name,
			Image:  img,
			MIME:   mime,
			Err:    err,
		}
	}()
	return out
}

// Apply hands a finished load to the store. Loads targeting a layer that
// has since been deleted are dropped. Failed loads leave the layer as it was
// and return the load error.
func (l *Loader) Apply(store *layer.Store, res Result) error {
	log := logging.Logger()
	if res.Err != nil {
		log.Warn("image load failed", "layer", res.ID, "name", res.Name, "err", res.Err)
		return res.Err
	}
	if err := store.SetImage(res.ID, res.Image, DisplayName(res.Name)); err != nil {
		if errors.Is(err, layer.ErrLayerNotFound) {
			log.Debug("dropping image for removed layer", "layer", res.ID, "name", res.Name)
			return nil
		}
		return err
	}
	store.SetSource(res.ID, res.Source)
	log.Info("layer image loaded", "layer", res.ID, "name", res.Name, "mime", res.MIME,
		"width", res.Image.Bounds().Dx(), "height", res.Image.Bounds().Dy())
	return nil
}

// Load fetches name and applies it to layer id, blocking until done.
func (l *Loader) Load(ctx context.Context, store *layer.Store, id layer.ID, name string) error {
	select {
	case res := <-l.LoadAsync(ctx, id, name):
		return l.Apply(store, res)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadAll loads several images with at most limit fetches in flight. Every
// image is applied once all fetches have finished, in request order, so
// the resulting activation does not depend on network timing. A failed
// image leaves its layer untouched and does not stop the others; the
// failures are returned joined.
func (l *Loader) LoadAll(ctx context.Context, store *layer.Store, reqs []Request, limit int) error {
	if limit <= 0 {
		limit = 4
	}
	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			img, mime, err := l.Fetch(ctx, req.Name)
			results[i] = Result{ID: req.ID, Name: req.Name, Source: req.Name, Image: img, MIME: mime, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if err := l.Apply(store, res); err != nil {
			errs = append(errs, fmt.Errorf("load %q: %w", res.Name, err))
		}
	}
	return errors.Join(errs...)
}

// DisplayName turns a file name or key into a layer name.
func DisplayName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}
