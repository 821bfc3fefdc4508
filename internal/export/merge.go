package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/pkg/naming"
)

// MergeGroup is the set of images inside one "<name>-merge" folder.
type MergeGroup struct {
	Dir   string // The -merge folder
	Name  string // Output name without extension
	Files []SourceFile
}

// Output returns the path of the flattened image, next to the merge folder.
func (g MergeGroup) Output() string {
	return filepath.Join(filepath.Dir(g.Dir), g.Name+".png")
}

// Merger flattens merge folders into single images.
type Merger struct {
	px         Pixels
	newestLast bool
	log        *zap.Logger
}

// NewMerger returns a merger drawing in the given order
// (config.MergeNewestFirst or config.MergeOldestFirst).
func NewMerger(px Pixels, order string, log *zap.Logger) *Merger {
	return &Merger{px: px, newestLast: order == config.MergeOldestFirst, log: log}
}

// FindGroups collects merge folders among files. Only files whose immediate
// parent matches the merge grammar belong to a group.
func FindGroups(files []SourceFile) []MergeGroup {
	byDir := make(map[string]*MergeGroup)
	var dirs []string
	for _, f := range files {
		dir := filepath.Dir(f.Path)
		name, ok := naming.ParseMergeFolder(dir)
		if !ok {
			continue
		}
		g, exists := byDir[dir]
		if !exists {
			g = &MergeGroup{Dir: dir, Name: name}
			byDir[dir] = g
			dirs = append(dirs, dir)
		}
		g.Files = append(g.Files, f)
	}

	sort.Strings(dirs)
	groups := make([]MergeGroup, 0, len(dirs))
	for _, d := range dirs {
		groups = append(groups, *byDir[d])
	}
	return groups
}

// DrawOrder sorts files newest first (name breaks ties) and reverses the
// result when the merger draws newest last.
func (m *Merger) DrawOrder(files []SourceFile) []SourceFile {
	ordered := append([]SourceFile(nil), files...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ModTime.Equal(ordered[j].ModTime) {
			return ordered[i].ModTime.After(ordered[j].ModTime)
		}
		return ordered[i].Rel < ordered[j].Rel
	})
	if m.newestLast {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	return ordered
}

// Composite draws images onto a transparent canvas sized to the largest
// width and height, in the given order, skipping sentinel pixels.
func (m *Merger) Composite(layers []*image.NRGBA) *image.NRGBA {
	var w, h int
	for _, l := range layers {
		if l.Rect.Dx() > w {
			w = l.Rect.Dx()
		}
		if l.Rect.Dy() > h {
			h = l.Rect.Dy()
		}
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	for _, l := range layers {
		masked := image.NewNRGBA(l.Rect)
		copy(masked.Pix, l.Pix)
		m.px.Erase(masked)
		draw.Draw(canvas, masked.Rect, masked, masked.Rect.Min, draw.Over)
	}
	return canvas
}

// Merge flattens one group, writes the output and removes the group's files
// and then the folder if nothing else is left in it.
// A group without images is a no-op and reports false.
func (m *Merger) Merge(g MergeGroup) (bool, error) {
	ordered := m.DrawOrder(g.Files)

	var layers []*image.NRGBA
	for _, f := range ordered {
		if f.Ext() != ".png" {
			m.log.Debug("Skipping non-image file in merge folder", zap.String("file", f.Rel))
			continue
		}
		img, err := decodePNG(f.Path)
		if err != nil {
			return false, fmt.Errorf("merge %s: %w", g.Name, err)
		}
		layers = append(layers, img)
	}
	if len(layers) == 0 {
		return false, nil
	}

	out := g.Output()
	if err := encodePNG(out, m.Composite(layers)); err != nil {
		return false, fmt.Errorf("merge %s: %w", g.Name, err)
	}
	for _, f := range g.Files {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("removing merged file %s: %w", f.Rel, err)
		}
	}
	// Subfolders are not part of the group; keep them and the folder around them.
	if err := os.Remove(g.Dir); err != nil {
		m.log.Warn("Merge folder not removed, it has nested content",
			zap.String("folder", g.Dir), zap.Error(err))
	}

	m.log.Info("Merged images",
		zap.String("output", filepath.Base(out)),
		zap.Int("layers", len(layers)))
	return true, nil
}

// MergeAll flattens every group found in files. Failing groups are logged
// and left in place; the count of merged groups and failures is returned.
func (m *Merger) MergeAll(files []SourceFile) (merged, failed int) {
	for _, g := range FindGroups(files) {
		ok, err := m.Merge(g)
		if err != nil {
			m.log.Warn("Merge failed", zap.String("folder", g.Dir), zap.Error(err))
			failed++
			continue
		}
		if ok {
			merged++
		}
	}
	return merged, failed
}
