package registry

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/pkg/atlasindex"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i-3], img.Pix[i] = 200, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func testSetup(t *testing.T) (*config.Config, string) {
	t.Helper()
	src := t.TempDir()
	writePNG(t, filepath.Join(src, "hero.png"), 8, 8)
	writePNG(t, filepath.Join(src, "fx", "torch-16x16-n3.png"), 48, 16)
	if err := os.WriteFile(filepath.Join(src, "title.fnt"), []byte("info face=title"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths.Source = src
	cfg.Paths.Output = t.TempDir()
	cfg.Runtime.ExportOnLoad = true
	return cfg, src
}

func TestLoadWithoutMetadata(t *testing.T) {
	cfg, _ := testSetup(t)
	cfg.Runtime.ExportOnLoad = false

	r := New(cfg, zap.NewNop())
	if err := r.Load(); !errors.Is(err, ErrNoMetadata) {
		t.Fatalf("expected ErrNoMetadata, got %v", err)
	}
	if _, err := r.Region("hero"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestLoadAndQuery(t *testing.T) {
	cfg, _ := testSetup(t)
	r := New(cfg, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hero, err := r.Region("hero")
	if err != nil {
		t.Fatalf("expected hero region: %v", err)
	}
	if hero.Kind != atlasindex.Plain || hero.Bounds.Dx() != 8 {
		t.Errorf("unexpected hero region: %+v", hero)
	}

	frames, err := r.Group("fx/torch")
	if err != nil {
		t.Fatalf("expected torch group: %v", err)
	}
	if len(frames) != 3 {
		t.Errorf("expected 3 frames, got %d", len(frames))
	}
	if !r.Has("fx/torch_n2") {
		t.Error("expected frame name to resolve")
	}
	if _, err := r.FindRaw("hero.png"); err != nil {
		t.Errorf("expected FindRaw to resolve hero.png: %v", err)
	}

	var nf *atlasindex.NotFoundError
	if _, err := r.Region("heor"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(nf.Similar) == 0 || nf.Similar[0] != "hero" {
		t.Errorf("expected hero suggested first, got %v", nf.Similar)
	}
}

func TestPageCache(t *testing.T) {
	cfg, _ := testSetup(t)
	r := New(cfg, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}

	first, err := r.Page(0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	second, err := r.Page(0)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected cached page to be returned")
	}
	hits, misses := r.CacheStats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d and %d", hits, misses)
	}

	hero, _ := r.Region("hero")
	if got := color.NRGBAModel.Convert(first.At(hero.Bounds.Min.X, hero.Bounds.Min.Y)).(color.NRGBA); got.A != 255 {
		t.Errorf("expected opaque hero pixel on page, got %v", got)
	}

	if _, err := r.Page(7); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	cfg, src := testSetup(t)
	r := New(cfg, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Page(0); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(src, "hero.png")); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(src, "villain.png"), 6, 6)

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if r.Has("hero") {
		t.Error("expected removed image to be gone after reload")
	}
	if !r.Has("villain") {
		t.Error("expected new image after reload")
	}
	if hits, misses := r.CacheStats(); hits != 0 || misses != 0 {
		t.Errorf("expected page cache cleared, got %d hits and %d misses", hits, misses)
	}
}

func TestDispose(t *testing.T) {
	cfg, _ := testSetup(t)
	r := New(cfg, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}

	r.Dispose()
	if r.Loaded() {
		t.Error("expected registry to be unloaded")
	}
	if r.Has("hero") {
		t.Error("expected no regions after dispose")
	}
	if _, err := r.Page(0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}

	if err := r.Load(); err != nil {
		t.Fatalf("expected registry to load again: %v", err)
	}
	if !r.Has("hero") {
		t.Error("expected hero after reloading")
	}
}

func TestFontPath(t *testing.T) {
	cfg, _ := testSetup(t)
	r := New(cfg, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"title", "title.fnt"} {
		path, err := r.FontPath(name)
		if err != nil {
			t.Errorf("FontPath(%s): %v", name, err)
			continue
		}
		if filepath.Base(path) != "title.fnt" {
			t.Errorf("expected title.fnt, got %s", path)
		}
	}
	if _, err := r.FontPath("missing"); !errors.Is(err, ErrFontNotFound) {
		t.Errorf("expected ErrFontNotFound, got %v", err)
	}
}

func TestConcurrentQueriesDuringReload(t *testing.T) {
	cfg, _ := testSetup(t)
	r := New(cfg, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := r.Region("hero"); err != nil {
					t.Errorf("query failed during reload: %v", err)
					return
				}
				if g, err := r.Group("fx/torch"); err != nil || len(g) != 3 {
					t.Errorf("expected complete group, got %d frames (%v)", len(g), err)
					return
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		if err := r.Reload(); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}
