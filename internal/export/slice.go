package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/pixelforge/pkg/naming"
)

// SlicedFrame is one cell cut from a tileset.
type SlicedFrame struct {
	Index            int
	Name             string // file name without extension, e.g. "torch_n2"
	Image            *image.NRGBA
	FullyTransparent bool
}

// SliceResult is the outcome of slicing one tileset image.
type SliceResult struct {
	Frames  []SlicedFrame
	Cells   int // candidate cells visited
	Skipped int // blank cells not emitted
}

// Slicer cuts tileset images into per-frame images.
type Slicer struct {
	px           Pixels
	keepPartial  bool
	ignoreBlanks bool
	log          *zap.Logger
}

// NewSlicer returns a slicer. keepPartial includes edge cells that overhang
// the image; ignoreBlanks drops fully transparent cells unless a frame count
// limits the tileset ("#" tilesets ignore their count).
func NewSlicer(px Pixels, keepPartial, ignoreBlanks bool, log *zap.Logger) *Slicer {
	return &Slicer{px: px, keepPartial: keepPartial, ignoreBlanks: ignoreBlanks, log: log}
}

func (s *Slicer) grid(size, cell int) int {
	if s.keepPartial {
		return (size + cell - 1) / cell
	}
	return size / cell
}

// SliceImage cuts img according to ts without touching the disk.
func (s *Slicer) SliceImage(img *image.NRGBA, ts naming.Tileset) SliceResult {
	var res SliceResult
	b := img.Bounds()
	cols := s.grid(b.Dx(), ts.CellWidth)
	rows := s.grid(b.Dy(), ts.CellHeight)

	limited := ts.HasFrameCount && !ts.HashTag
	name := ts.Base
	i := 0

scan:
	for row := 0; row < rows; row++ {
		if ts.HashTag {
			name = ts.RowName(row)
			i = 0
		}
		for col := 0; col < cols; col++ {
			if limited && i >= ts.FrameCount {
				break scan
			}
			res.Cells++

			cell := image.Rect(
				b.Min.X+col*ts.CellWidth, b.Min.Y+row*ts.CellHeight,
				b.Min.X+(col+1)*ts.CellWidth, b.Min.Y+(row+1)*ts.CellHeight,
			)
			area := cell
			if ts.Cropped {
				area = s.cropBox(img, cell)
			}

			frame := s.cut(img, area)
			blank := s.blank(frame)
			if blank && s.ignoreBlanks && !limited {
				res.Skipped++
				i++
				continue
			}

			res.Frames = append(res.Frames, SlicedFrame{
				Index:            i,
				Name:             naming.FrameName(name, i),
				Image:            frame,
				FullyTransparent: blank,
			})
			i++
		}
	}
	return res
}

// cropBox returns the bounding box of visible pixels inside cell, or a 1x1
// box at the cell's top-left when nothing is visible.
func (s *Slicer) cropBox(img *image.NRGBA, cell image.Rectangle) image.Rectangle {
	visible := cell.Intersect(img.Bounds())
	minX, minY := visible.Max.X, visible.Max.Y
	maxX, maxY := visible.Min.X-1, visible.Min.Y-1

	for y := visible.Min.Y; y < visible.Max.Y; y++ {
		i := img.PixOffset(visible.Min.X, y)
		for x := visible.Min.X; x < visible.Max.X; x++ {
			if !s.px.IsTransparent(img.Pix, i) {
				minX = min(minX, x)
				minY = min(minY, y)
				maxX = max(maxX, x)
				maxY = max(maxY, y)
			}
			i += 4
		}
	}

	if maxX < minX {
		return image.Rect(cell.Min.X, cell.Min.Y, cell.Min.X+1, cell.Min.Y+1)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// cut copies area of img into a new origin-anchored image. Parts of area
// outside img stay transparent; sentinel pixels are erased.
func (s *Slicer) cut(img *image.NRGBA, area image.Rectangle) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, area.Dx(), area.Dy()))
	src := area.Intersect(img.Bounds())
	if !src.Empty() {
		dst := src.Sub(area.Min)
		draw.Draw(out, dst, img, src.Min, draw.Src)
	}
	s.px.Erase(out)
	return out
}

func (s *Slicer) blank(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// SliceTo slices the tileset at path and writes each frame into dir. The
// source is left in place. It returns the written paths.
func (s *Slicer) SliceTo(path, dir string, ts naming.Tileset) ([]string, error) {
	img, err := decodePNG(path)
	if err != nil {
		return nil, err
	}
	if ts.Minimal {
		s.log.Debug("8bitmin modifier has no effect", zap.String("file", filepath.Base(path)))
	}

	res := s.SliceImage(img, ts)
	written := make([]string, 0, len(res.Frames))
	for _, f := range res.Frames {
		out := filepath.Join(dir, f.Name+".png")
		if err := encodePNG(out, f.Image); err != nil {
			return written, fmt.Errorf("writing frame %s: %w", f.Name, err)
		}
		written = append(written, out)
	}

	s.log.Info("Sliced tileset",
		zap.String("file", filepath.Base(path)),
		zap.Int("cells", res.Cells),
		zap.Int("frames", len(res.Frames)),
		zap.Int("skipped", res.Skipped))
	return written, nil
}

// SliceFile slices the tileset at path, writes each frame next to it and
// removes the source.
func (s *Slicer) SliceFile(path string, ts naming.Tileset) ([]string, error) {
	written, err := s.SliceTo(path, filepath.Dir(path), ts)
	if err != nil {
		return written, err
	}
	if err := os.Remove(path); err != nil {
		return written, fmt.Errorf("removing sliced source: %w", err)
	}
	return written, nil
}
