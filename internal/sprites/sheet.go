// Package sprites hands atlas regions to an ebiten game as sub-images.
package sprites

import (
	"fmt"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/Faultbox/pixelforge/pkg/atlasindex"
)

// Source resolves regions and page images, typically a *registry.Registry.
type Source interface {
	Region(name string) (atlasindex.Region, error)
	Group(name string) ([]atlasindex.Region, error)
	Page(i int) (image.Image, error)
}

// Sheet uploads atlas pages to the GPU on first use and cuts regions out of them.
type Sheet struct {
	src   Source
	mu    sync.Mutex
	pages map[int]*ebiten.Image
}

// NewSheet creates a sheet over src.
func NewSheet(src Source) *Sheet {
	return &Sheet{
		src:   src,
		pages: make(map[int]*ebiten.Image),
	}
}

func (s *Sheet) page(i int) (*ebiten.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pages[i]; ok {
		return p, nil
	}
	img, err := s.src.Page(i)
	if err != nil {
		return nil, err
	}
	p := ebiten.NewImageFromImage(img)
	s.pages[i] = p
	return p, nil
}

func (s *Sheet) sub(r atlasindex.Region) (*ebiten.Image, error) {
	p, err := s.page(r.Page)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", r.Name, err)
	}
	return p.SubImage(r.Bounds).(*ebiten.Image), nil
}

// Image returns the sub-image of a region or animation frame.
func (s *Sheet) Image(name string) (*ebiten.Image, error) {
	r, err := s.src.Region(name)
	if err != nil {
		return nil, err
	}
	return s.sub(r)
}

// Frames returns the ordered frame images of an animation.
func (s *Sheet) Frames(group string) ([]*ebiten.Image, error) {
	regions, err := s.src.Group(group)
	if err != nil {
		return nil, err
	}
	frames := make([]*ebiten.Image, len(regions))
	for i, r := range regions {
		if frames[i], err = s.sub(r); err != nil {
			return nil, err
		}
	}
	return frames, nil
}

// FrameSpeeds returns the display-time multiplier of each frame of an animation.
func (s *Sheet) FrameSpeeds(group string) ([]float64, error) {
	regions, err := s.src.Group(group)
	if err != nil {
		return nil, err
	}
	speeds := make([]float64, len(regions))
	for i, r := range regions {
		speeds[i] = r.SpeedMultiplier
	}
	return speeds, nil
}

// Invalidate drops uploaded pages, e.g. after the registry reloaded.
func (s *Sheet) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pages {
		p.Deallocate()
	}
	s.pages = make(map[int]*ebiten.Image)
}
