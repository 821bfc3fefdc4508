package export

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestFontRelocator(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	writeFile(t, out, "fonts/stale.fnt", "old")
	writeFile(t, out, "fonts/readme.txt", "keep me")

	main := writeFile(t, src, "ui/main.fnt", "info face=main")
	small := writeFile(t, src, "small.fnt", "info face=small")

	r := NewFontRelocator(out, ".fnt", zap.NewNop())
	for _, p := range []string{main, small} {
		f := SourceFile{Path: p}
		if !r.IsFont(f) {
			t.Fatalf("expected %s to be a font", p)
		}
		if err := r.Relocate(f); err != nil {
			t.Fatalf("Relocate failed: %v", err)
		}
	}

	if exists(filepath.Join(out, "fonts", "stale.fnt")) {
		t.Error("expected stale font to be cleared")
	}
	if !exists(filepath.Join(out, "fonts", "readme.txt")) {
		t.Error("expected non-font files to survive the clear")
	}
	for _, name := range []string{"main.fnt", "small.fnt"} {
		if !exists(filepath.Join(out, "fonts", name)) {
			t.Errorf("expected %s in fonts directory", name)
		}
	}
	if !exists(main) {
		t.Error("expected font to be copied, not moved")
	}
}

func TestFontRelocatorOverwrites(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	r := NewFontRelocator(out, ".fnt", zap.NewNop())
	first := writeFile(t, src, "a/title.fnt", "first")
	second := writeFile(t, src, "b/title.fnt", "second")
	for _, p := range []string{first, second} {
		if err := r.Relocate(SourceFile{Path: p}); err != nil {
			t.Fatalf("Relocate failed: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(r.Dir(), "title.fnt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("expected last copy to win, got %q", data)
	}
}

func TestFontRelocatorIgnoresOtherExtensions(t *testing.T) {
	r := NewFontRelocator(t.TempDir(), ".FNT", zap.NewNop())
	tests := []struct {
		path string
		want bool
	}{
		{"fonts/main.fnt", true},
		{"fonts/MAIN.FNT", true},
		{"fonts/main.png", false},
		{"fonts/main.ttf", false},
	}
	for _, tt := range tests {
		if got := r.IsFont(SourceFile{Path: tt.path}); got != tt.want {
			t.Errorf("IsFont(%s): expected %v, got %v", tt.path, tt.want, got)
		}
	}
}
