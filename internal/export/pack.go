package export

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/pkg/atlas"
	"github.com/Faultbox/pixelforge/pkg/naming"
)

// Packer errors.
var (
	ErrImageTooLarge   = errors.New("image larger than the maximum page size")
	ErrDuplicateRegion = errors.New("duplicate region name")
	ErrNothingToPack   = errors.New("no images to pack")
)

// Sprite is one image waiting to be packed.
type Sprite struct {
	Name  string // Region name with any packer index removed
	Index int    // -1 when not indexed
	Image *image.NRGBA
}

// FullName returns the name the sprite was collected under.
func (s Sprite) FullName() string {
	if s.Index < 0 {
		return s.Name
	}
	return fmt.Sprintf("%s_%d", s.Name, s.Index)
}

// placement is a sprite's position in the layout.
type placement struct {
	sprite Sprite
	page   int
	at     image.Point
}

// Packer lays images out on atlas pages and writes the pages and metadata.
type Packer struct {
	cfg config.PackConfig
	log *zap.Logger
}

// NewPacker returns a packer with the given settings.
func NewPacker(cfg config.PackConfig, log *zap.Logger) *Packer {
	return &Packer{cfg: cfg, log: log}
}

// RegionName derives the region name of an image from its path relative to
// the working tree. "foo_3" is split into "foo" and index 3; frame names
// ("foo_n3") are kept whole.
func (p *Packer) RegionName(rel string) (string, int) {
	name := strings.TrimSuffix(rel, path.Ext(rel))
	if p.cfg.FlattenPaths {
		name = path.Base(name)
	}
	if base, index, ok := naming.ParseIndexed(name); ok {
		return base, index
	}
	return name, -1
}

// Collect loads every png under root as a sprite. Images that cannot be
// decoded are logged and returned in skipped instead of failing the run.
func (p *Packer) Collect(root string) (sprites []Sprite, skipped []string, err error) {
	files, err := scanFiles(root)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]string)
	for _, f := range files {
		if f.Ext() != ".png" {
			p.log.Debug("Not packing non-image file", zap.String("file", f.Rel))
			continue
		}
		img, err := decodePNG(f.Path)
		if err != nil {
			p.log.Warn("Image not packed", zap.String("file", f.Rel), zap.Error(err))
			skipped = append(skipped, f.Rel)
			continue
		}
		name, index := p.RegionName(f.Rel)
		s := Sprite{Name: name, Index: index, Image: img}
		if prev, dup := seen[s.FullName()]; dup {
			return nil, nil, fmt.Errorf("%w: %s (%s and %s)", ErrDuplicateRegion, s.FullName(), prev, f.Rel)
		}
		seen[s.FullName()] = f.Rel
		sprites = append(sprites, s)
	}
	return sprites, skipped, nil
}

// layout places sprites on shelves, tallest first, opening a new page when
// one fills up. The result is deterministic for a given set of sprites.
func (p *Packer) layout(sprites []Sprite) ([]placement, []image.Point, error) {
	ordered := append([]Sprite(nil), sprites...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].Image.Rect, ordered[j].Image.Rect
		if a.Dy() != b.Dy() {
			return a.Dy() > b.Dy()
		}
		if a.Dx() != b.Dx() {
			return a.Dx() > b.Dx()
		}
		return ordered[i].FullName() < ordered[j].FullName()
	})

	maxW, maxH, pad := p.cfg.MaxWidth, p.cfg.MaxHeight, p.cfg.Padding
	var (
		placed []placement
		sizes  []image.Point
		page   = -1
		x, y   int
		shelfH int
	)
	newPage := func() {
		page++
		sizes = append(sizes, image.Point{})
		x, y, shelfH = 0, 0, 0
	}

	for _, s := range ordered {
		w, h := s.Image.Rect.Dx(), s.Image.Rect.Dy()
		if w > maxW || h > maxH {
			return nil, nil, fmt.Errorf("%w: %s is %dx%d, page is %dx%d",
				ErrImageTooLarge, s.FullName(), w, h, maxW, maxH)
		}
		if page < 0 {
			newPage()
		}
		if x+w > maxW {
			// next shelf
			x, y = 0, y+shelfH+pad
			shelfH = 0
		}
		if y+h > maxH {
			newPage()
		}

		placed = append(placed, placement{sprite: s, page: page, at: image.Pt(x, y)})
		sizes[page].X = max(sizes[page].X, x+w)
		sizes[page].Y = max(sizes[page].Y, y+h)
		shelfH = max(shelfH, h)
		x += w + pad
	}
	return placed, sizes, nil
}

// PageFile returns the image file name of page i.
func (p *Packer) PageFile(i int) string {
	if i == 0 {
		return p.cfg.AtlasName + ".png"
	}
	return fmt.Sprintf("%s%d.png", p.cfg.AtlasName, i+1)
}

// Pack lays out sprites and writes the page images into outDir. It returns
// the atlas describing them; metadata is written separately.
func (p *Packer) Pack(sprites []Sprite, outDir string) (*atlas.Atlas, error) {
	if len(sprites) == 0 {
		return nil, ErrNothingToPack
	}
	placed, sizes, err := p.layout(sprites)
	if err != nil {
		return nil, err
	}

	a := &atlas.Atlas{Pages: make([]atlas.Page, len(sizes))}
	canvases := make([]*image.NRGBA, len(sizes))
	for i, sz := range sizes {
		canvases[i] = image.NewNRGBA(image.Rect(0, 0, sz.X, sz.Y))
		a.Pages[i] = atlas.Page{
			File:   p.PageFile(i),
			Width:  sz.X,
			Height: sz.Y,
			Format: "RGBA8888",
			Filter: p.cfg.Filter,
			Repeat: "none",
		}
	}

	for _, pl := range placed {
		img := pl.sprite.Image
		bounds := image.Rectangle{Min: pl.at, Max: pl.at.Add(img.Rect.Size())}
		draw.Draw(canvases[pl.page], bounds, img, img.Rect.Min, draw.Src)
		a.Pages[pl.page].Regions = append(a.Pages[pl.page].Regions, atlas.Region{
			Name:   pl.sprite.Name,
			Index:  pl.sprite.Index,
			Page:   pl.page,
			Bounds: bounds,
			OrigW:  img.Rect.Dx(),
			OrigH:  img.Rect.Dy(),
		})
	}

	for i, c := range canvases {
		if err := encodePNG(filepath.Join(outDir, a.Pages[i].File), c); err != nil {
			return nil, fmt.Errorf("writing page %d: %w", i, err)
		}
	}
	if err := p.removeStalePages(outDir, len(sizes)); err != nil {
		return nil, err
	}

	p.log.Info("Packed atlas",
		zap.Int("pages", len(sizes)),
		zap.Int("regions", len(placed)))
	return a, nil
}

// removeStalePages deletes page images beyond the current page count.
func (p *Packer) removeStalePages(outDir string, pages int) error {
	pageRe := regexp.MustCompile(`^` + regexp.QuoteMeta(p.cfg.AtlasName) + `(\d*)\.png$`)
	keep := make(map[string]bool, pages)
	for i := 0; i < pages; i++ {
		keep[p.PageFile(i)] = true
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || keep[e.Name()] || !pageRe.MatchString(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(outDir, e.Name())); err != nil {
			return fmt.Errorf("removing stale page: %w", err)
		}
		p.log.Debug("Removed stale page", zap.String("file", e.Name()))
	}
	return nil
}

// MetadataPaths returns the metadata files a pack writes into outDir.
func (p *Packer) MetadataPaths(outDir string) []string {
	var paths []string
	for _, f := range p.cfg.Formats {
		switch f {
		case config.FormatGDX:
			paths = append(paths, filepath.Join(outDir, p.cfg.AtlasName+atlas.ExtGDX))
		case config.FormatJSON:
			paths = append(paths, filepath.Join(outDir, p.cfg.AtlasName+atlas.ExtJSON))
		}
	}
	return paths
}

// WriteMetadata writes a in every configured format. Each file is replaced
// atomically so readers never see a partial atlas.
func (p *Packer) WriteMetadata(a *atlas.Atlas, outDir string) ([]string, error) {
	paths := p.MetadataPaths(outDir)
	for _, dst := range paths {
		if err := writeAtomic(dst, a); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func writeAtomic(dst string, a *atlas.Atlas) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst))
	if err != nil {
		return fmt.Errorf("creating metadata: %w", err)
	}
	defer os.Remove(tmp.Name())

	switch filepath.Ext(dst) {
	case atlas.ExtJSON:
		err = atlas.WriteJSON(tmp, a)
	default:
		err = atlas.WriteGDX(tmp, a)
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(dst), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(dst), err)
	}
	return nil
}
