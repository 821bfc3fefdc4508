package export

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/pkg/atlas"
)

// rawTree lays out a small source tree exercising every preprocessing step.
func rawTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	writeImage(t, src, "hero.png", filled(12, 12, red))
	writeImage(t, src, "fx/torch-crop-16x16-n3.png", filled(48, 16, green))
	writeImage(t, src, "house-merge/base.png", filled(10, 10, blue))
	writeImage(t, src, "house-merge/door.png", filled(4, 6, red))
	writeImage(t, src, "_sketch.png", filled(4, 4, red))
	writeFile(t, src, "fonts/main.fnt", "info face=main")
	return src
}

func testConfig(src, out string) *config.Config {
	cfg := config.Default()
	cfg.Paths.Source = src
	cfg.Paths.Output = out
	cfg.Pack.MaxWidth = 256
	cfg.Pack.MaxHeight = 256
	return cfg
}

func regionNames(t *testing.T, path string) map[string]bool {
	t.Helper()
	a, err := atlas.ParseFile(path)
	if err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	names := make(map[string]bool)
	for _, r := range a.Regions() {
		names[r.FullName()] = true
	}
	return names
}

func TestExporterRun(t *testing.T) {
	src := rawTree(t)
	out := t.TempDir()
	e := New(testConfig(src, out), zap.NewNop())

	res, err := e.Run(false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Skipped {
		t.Fatal("expected first run to pack")
	}
	if res.Merged != 1 || res.Sliced != 1 || res.Frames != 3 || res.Fonts != 1 || res.Deleted != 1 {
		t.Errorf("unexpected counts: %+v", res)
	}

	names := regionNames(t, filepath.Join(out, AtlasDir, "atlas.atlas"))
	for _, want := range []string{"hero", "house", "fx/torch_n0", "fx/torch_n1", "fx/torch_n2"} {
		if !names[want] {
			t.Errorf("expected region %s, got %v", want, names)
		}
	}
	if names["_sketch"] {
		t.Error("expected ignored file not to be packed")
	}
	if len(names) != 5 {
		t.Errorf("expected 5 regions, got %d", len(names))
	}

	if !exists(filepath.Join(out, FontsDir, "main.fnt")) {
		t.Error("expected font to be relocated")
	}

	// Staging leaves the source tree as it was
	for _, rel := range []string{"fx/torch-crop-16x16-n3.png", "house-merge/base.png", "_sketch.png"} {
		if !exists(filepath.Join(src, filepath.FromSlash(rel))) {
			t.Errorf("expected source %s to be untouched", rel)
		}
	}
	if exists(filepath.Join(src, "house.png")) {
		t.Error("expected no generated files in the source tree")
	}
}

func TestExporterSkipsUnchanged(t *testing.T) {
	src := rawTree(t)
	out := t.TempDir()
	e := New(testConfig(src, out), zap.NewNop())

	if _, err := e.Run(false); err != nil {
		t.Fatal(err)
	}

	res, err := e.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Errorf("expected second run to skip, reason: %s", res.Reason)
	}

	repack, _, err := e.Check()
	if err != nil {
		t.Fatal(err)
	}
	if repack {
		t.Error("expected Check to report up to date")
	}

	forced, err := e.Run(true)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Skipped {
		t.Error("expected forced run to pack")
	}

	later := time.Now().Add(time.Minute)
	setModTime(t, filepath.Join(src, "hero.png"), later)
	res, err = e.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Error("expected modified source to trigger a repack")
	}
}

func TestExporterInPlace(t *testing.T) {
	src := rawTree(t)
	out := t.TempDir()
	cfg := testConfig(src, out)
	cfg.Export.InPlace = true
	e := New(cfg, zap.NewNop())

	if _, err := e.Run(false); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !exists(filepath.Join(src, "house.png")) {
		t.Error("expected merged image in the source tree")
	}
	for _, rel := range []string{"house-merge", "_sketch.png", "fx/torch-crop-16x16-n3.png", "fx/torch_n0.png"} {
		if exists(filepath.Join(src, filepath.FromSlash(rel))) {
			t.Errorf("expected %s to be gone after an in-place run", rel)
		}
	}

	res, err := e.Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Errorf("expected in-place rerun to skip, reason: %s", res.Reason)
	}
}

func TestExporterBusy(t *testing.T) {
	src := rawTree(t)
	out := t.TempDir()
	e := New(testConfig(src, out), zap.NewNop())
	e.LockTimeout = 50 * time.Millisecond

	openTestManifest(t, e.AtlasDir())

	if _, err := e.Run(false); !errors.Is(err, ErrPipelineBusy) {
		t.Errorf("expected ErrPipelineBusy, got %v", err)
	}
}

func TestExporterMissingSource(t *testing.T) {
	e := New(testConfig(filepath.Join(t.TempDir(), "missing"), t.TempDir()), zap.NewNop())
	if _, err := e.Run(false); err == nil {
		t.Error("expected error for missing source directory")
	}
}

func TestExporterSettingsChangeRepacks(t *testing.T) {
	src := rawTree(t)
	out := t.TempDir()
	cfg := testConfig(src, out)
	if _, err := New(cfg, zap.NewNop()).Run(false); err != nil {
		t.Fatal(err)
	}

	cfg.Pack.Formats = []string{config.FormatGDX, config.FormatJSON}
	res, err := New(cfg, zap.NewNop()).Run(false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Error("expected a settings change to trigger a repack")
	}
	if !exists(filepath.Join(out, AtlasDir, "atlas.json")) {
		t.Error("expected json metadata after enabling the format")
	}
}

func TestExporterContinuesPastCorruptImages(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeImage(t, src, "hero.png", filled(12, 12, red))
	writeFile(t, src, "bad-16x16.png", "not a png")
	writeImage(t, src, "house-merge/a.png", filled(8, 8, blue))
	writeFile(t, src, "house-merge/b.png", "\x89PNG")

	res, err := New(testConfig(src, out), zap.NewNop()).Run(false)
	if err != nil {
		t.Fatalf("expected run to survive corrupt images, got %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("expected 1 failed tileset, got %d", res.Failed)
	}
	if res.MergeFailed != 1 {
		t.Errorf("expected 1 failed merge group, got %d", res.MergeFailed)
	}
	if res.Unpacked != 2 {
		t.Errorf("expected 2 unpacked images, got %d", res.Unpacked)
	}

	names := regionNames(t, filepath.Join(out, AtlasDir, "atlas.atlas"))
	if !names["hero"] || !names["house-merge/a"] {
		t.Errorf("expected the readable images to be packed, got %v", names)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 regions, got %d", len(names))
	}
}
