package export

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var (
	red      = color.NRGBA{R: 255, A: 255}
	green    = color.NRGBA{G: 255, A: 255}
	blue     = color.NRGBA{B: 255, A: 255}
	sentinel = color.NRGBA{R: 4, G: 20, B: 69, A: 255}
	testPx   = Pixels{Sentinel: sentinel}
)

// filled returns a w x h image painted with c.
func filled(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Rect, c)
	return img
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// writeImage encodes img as a png at root/rel.
func writeImage(t *testing.T, root, rel string, img image.Image) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := encodePNG(path, img); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setModTime(t *testing.T, path string, mt time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
