package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// Pixels is the subset of pixel rules shared by merging and slicing.
type Pixels struct {
	Sentinel color.NRGBA // exact color treated as "erase"
}

// IsSentinel reports whether the pixel at offset i of an NRGBA buffer is the sentinel color.
func (p Pixels) IsSentinel(pix []uint8, i int) bool {
	return pix[i] == p.Sentinel.R && pix[i+1] == p.Sentinel.G && pix[i+2] == p.Sentinel.B && pix[i+3] == p.Sentinel.A
}

// IsTransparent reports whether the pixel at offset i is fully transparent or the sentinel.
func (p Pixels) IsTransparent(pix []uint8, i int) bool {
	return pix[i+3] == 0 || p.IsSentinel(pix, i)
}

// Erase clears every sentinel pixel of img to transparent.
func (p Pixels) Erase(img *image.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if p.IsSentinel(img.Pix, i) {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
			}
			i += 4
		}
	}
}

// toNRGBA copies src into a new non-premultiplied image anchored at the origin.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// decodePNG reads an image file into NRGBA form.
func decodePNG(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n, nil
	}
	return toNRGBA(img), nil
}

// encodePNG writes img to path, creating parent directories.
func encodePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
