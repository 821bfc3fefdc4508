//go:build ignore

// This program writes a small raw asset tree for trying the export pipeline.
// Run with: go run generate.go [dir]
package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

var sentinel = color.NRGBA{R: 4, G: 20, B: 69, A: 255}

func main() {
	root := "raw"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	// Three 16x16 torch frames with a flame growing in height
	torch := image.NewNRGBA(image.Rect(0, 0, 48, 16))
	for i := 0; i < 3; i++ {
		fill(torch, image.Rect(i*16+6, 10-i*2, i*16+10, 16), color.NRGBA{R: 255, G: uint8(120 + i*40), A: 255})
	}
	write(root, "fx/torch-crop-16x16-n3.png", torch)

	// Two walk rows, the second cell of row 1 left blank
	walk := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	fill(walk, image.Rect(0, 0, 32, 32), color.NRGBA{G: 200, A: 255})
	fill(walk, image.Rect(32, 0, 64, 32), color.NRGBA{G: 160, A: 255})
	fill(walk, image.Rect(0, 32, 32, 64), color.NRGBA{B: 200, A: 255})
	write(root, "chars/walk_#-32x32.png", walk)

	// House layers; the sentinel punches a door hole through the roof layer
	base := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	fill(base, base.Rect, color.NRGBA{R: 150, G: 90, B: 40, A: 255})
	roof := image.NewNRGBA(image.Rect(0, 0, 32, 16))
	fill(roof, roof.Rect, color.NRGBA{R: 180, A: 255})
	fill(roof, image.Rect(12, 8, 20, 16), sentinel)
	write(root, "world/house-merge/base.png", base)
	write(root, "world/house-merge/roof.png", roof)

	// Packer-indexed buttons and an ignored sketch
	for i := 0; i < 2; i++ {
		btn := image.NewNRGBA(image.Rect(0, 0, 24, 12))
		fill(btn, btn.Rect, color.NRGBA{R: 60, G: 60, B: uint8(120 + i*80), A: 255})
		write(root, filepath.Join("ui", "button_"+string(rune('0'+i))+".png"), btn)
	}
	write(root, "ui/_sketch.png", image.NewNRGBA(image.Rect(0, 0, 4, 4)))

	font := "info face=\"main\" size=12\ncommon lineHeight=14 base=11 pages=1\n"
	if err := os.MkdirAll(filepath.Join(root, "fonts"), 0755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(filepath.Join(root, "fonts", "main.fnt"), []byte(font), 0644); err != nil {
		panic(err)
	}
}

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func write(root, rel string, img image.Image) {
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}
