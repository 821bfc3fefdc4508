// Package registry owns the loaded atlas and its lookup index for the
// lifetime of an application.
package registry

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/internal/export"
	"github.com/Faultbox/pixelforge/pkg/atlas"
	"github.com/Faultbox/pixelforge/pkg/atlasindex"
)

// Registry errors.
var (
	ErrNotLoaded    = errors.New("atlas not loaded")
	ErrNoMetadata   = errors.New("no atlas metadata found")
	ErrPageNotFound = errors.New("atlas page not found")
	ErrFontNotFound = errors.New("font not found")
)

// Registry holds the parsed atlas, its region index and decoded page images.
// Queries may run concurrently with each other; Reload blocks them until the
// new index is complete.
type Registry struct {
	cfg      *config.Config
	log      *zap.Logger
	exporter *export.Exporter

	mu       sync.RWMutex
	metaPath string
	atlas    *atlas.Atlas
	index    *atlasindex.Index
	pages    *Cache
	loaded   bool
}

// New creates a registry for cfg. Nothing is read until Load.
func New(cfg *config.Config, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	index := atlasindex.New()
	index.SetSuggestions(cfg.Runtime.Suggestions)
	return &Registry{
		cfg:      cfg,
		log:      log,
		exporter: export.New(cfg, log.Named("export")),
		index:    index,
		pages:    NewCache(),
	}
}

// Load reads the atlas and builds the index. With runtime.export_on_load the
// export pipeline runs first. Loading an already loaded registry is a no-op.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}
	if r.cfg.Runtime.ExportOnLoad {
		if err := r.export(); err != nil {
			return err
		}
	}
	return r.read()
}

// Reload runs the export pipeline, then re-reads the atlas and rebuilds the
// index from scratch. Cached page images are dropped.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.export(); err != nil {
		return err
	}
	return r.read()
}

// Dispose releases the atlas, the index and all cached pages.
func (r *Registry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := r.pages.Len()
	r.atlas = nil
	r.metaPath = ""
	r.index.Reset()
	r.pages.Clear()
	r.loaded = false
	r.log.Debug("Registry disposed", zap.Int("cached_pages", dropped))
}

func (r *Registry) export() error {
	res, err := r.exporter.Run(false)
	if err != nil {
		return fmt.Errorf("exporting atlas: %w", err)
	}
	if !res.Skipped {
		r.log.Info("Atlas exported", zap.Int("regions", res.Regions), zap.Int("pages", res.Pages))
	}
	return nil
}

// read parses the first metadata file that exists and rebuilds the index.
// Callers hold the write lock.
func (r *Registry) read() error {
	var path string
	for _, p := range r.exporter.MetadataPaths() {
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return fmt.Errorf("%w in %s", ErrNoMetadata, r.exporter.AtlasDir())
	}

	a, err := atlas.ParseFile(path)
	if err != nil {
		return fmt.Errorf("loading atlas: %w", err)
	}

	r.atlas = a
	r.metaPath = path
	r.index.Rebuild(a.Regions())
	if n := r.pages.Len(); n > 0 {
		r.log.Debug("Dropping cached pages", zap.Int("pages", n))
	}
	r.pages.Clear()
	r.loaded = true

	st := r.index.Stats()
	r.log.Info("Atlas loaded",
		zap.String("file", filepath.Base(path)),
		zap.Int("pages", len(a.Pages)),
		zap.Int("regions", st.Plain),
		zap.Int("frames", st.Frames),
		zap.Int("groups", st.Groups))
	return nil
}

// Loaded reports whether an atlas is currently loaded.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Region resolves a region or animation frame by name.
func (r *Registry) Region(name string) (atlasindex.Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return atlasindex.Region{}, ErrNotLoaded
	}
	return r.index.Region(name)
}

// Group returns the ordered frames of an animation.
func (r *Registry) Group(name string) ([]atlasindex.Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, ErrNotLoaded
	}
	g, err := r.index.Group(name)
	if err != nil {
		return nil, err
	}
	return append([]atlasindex.Region(nil), g...), nil
}

// Has reports whether name resolves to a region, frame or group.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded && r.index.Has(name)
}

// FindRaw resolves the file name an image had before packing.
func (r *Registry) FindRaw(rawImageName string) (atlasindex.Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return atlasindex.Region{}, ErrNotLoaded
	}
	return r.index.FindRaw(rawImageName)
}

// Names returns every resolvable region name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Names()
}

// GroupNames returns every animation name.
func (r *Registry) GroupNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.GroupNames()
}

// Stats returns the index counts.
func (r *Registry) Stats() atlasindex.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Stats()
}

// Atlas returns the loaded metadata.
func (r *Registry) Atlas() (*atlas.Atlas, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, ErrNotLoaded
	}
	return r.atlas, nil
}

// Page returns the decoded image of page i, reading it on first use.
func (r *Registry) Page(i int) (image.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, ErrNotLoaded
	}
	if i < 0 || i >= len(r.atlas.Pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageNotFound, i, len(r.atlas.Pages))
	}

	path := r.atlas.PagePath(r.metaPath, i)
	if img, ok := r.pages.Get(path); ok {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageNotFound, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding page %s: %w", filepath.Base(path), err)
	}
	r.pages.Set(path, img)
	return img, nil
}

// CacheStats returns page cache hits and misses since the last load.
func (r *Registry) CacheStats() (hits, misses int) {
	return r.pages.Stats()
}

// FontPath returns the relocated path of a bitmap font. The extension may be omitted.
func (r *Registry) FontPath(name string) (string, error) {
	if filepath.Ext(name) == "" {
		name += r.cfg.Export.FontExtension
	}
	path := filepath.Join(r.cfg.Paths.Output, export.FontsDir, filepath.Base(name))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFontNotFound, name)
	}
	return path, nil
}
