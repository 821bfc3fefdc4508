// Package atlasindex builds name lookups over the regions of a packed atlas.
//
// Regions named "<base>_n<i>" are animation frames: they are grouped under
// base, ordered by i and compacted so the exposed frame slice has no holes.
// The original "<base>_n<i>" name still resolves to the compacted frame.
package atlasindex

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/Faultbox/pixelforge/pkg/atlas"
	"github.com/Faultbox/pixelforge/pkg/naming"
)

// Lookup errors.
var (
	ErrRegionNotFound = errors.New("region not found")
	ErrGroupNotFound  = errors.New("region group not found")
)

// Kind distinguishes plain regions from animation frames.
type Kind uint8

const (
	Plain Kind = iota
	AnimFrame
)

// String returns the kind name.
func (k Kind) String() string {
	if k == AnimFrame {
		return "anim-frame"
	}
	return "plain"
}

// Region is a resolved atlas region.
type Region struct {
	Name   string // Full atlas name
	Kind   Kind
	Page   int
	Bounds image.Rectangle
	Source atlas.Region

	// SpeedMultiplier scales the frame's display time. Always 1 for plain regions.
	SpeedMultiplier float64
}

// FrameRef locates a frame inside a compacted group.
type FrameRef struct {
	Group    string
	Position int
}

// Stats summarizes an index.
type Stats struct {
	Plain  int
	Frames int
	Groups int
}

// Index is the runtime lookup table of an atlas.
type Index struct {
	regions map[string]Region   // plain regions by name
	indexed map[string]Region   // packer-indexed regions by "name_<index>"
	groups  map[string][]Region // compacted frame groups
	frames  map[string]FrameRef // original frame names to compacted positions
	stats   Stats

	suggestions int
}

// New returns an empty index.
func New() *Index {
	x := &Index{suggestions: DefaultSuggestions}
	x.Reset()
	return x
}

// SetSuggestions sets how many similar names lookup errors list. Zero disables them.
func (x *Index) SetSuggestions(n int) {
	x.suggestions = n
}

// Build indexes the given regions. The result depends only on the set of
// regions, not on their order.
func Build(regions []atlas.Region) *Index {
	x := New()
	x.Rebuild(regions)
	return x
}

// Reset clears every lookup table.
func (x *Index) Reset() {
	x.regions = make(map[string]Region)
	x.indexed = make(map[string]Region)
	x.groups = make(map[string][]Region)
	x.frames = make(map[string]FrameRef)
	x.stats = Stats{}
}

type pendingFrame struct {
	index  int
	region Region
	raw    string
}

// Rebuild clears the index and repopulates it from regions.
func (x *Index) Rebuild(regions []atlas.Region) {
	x.Reset()

	sorted := make([]atlas.Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Index < sorted[j].Index
	})

	slots := make(map[string]map[int]*pendingFrame)
	mults := make(map[string]map[int]float64)

	for _, src := range sorted {
		stripped, speeds := naming.ParseSpeedMultipliers(src.Name)
		base, idx, ok := naming.ParseFrame(stripped)
		if !ok {
			x.addPlain(src)
			continue
		}

		x.stats.Frames++
		for _, s := range speeds {
			if mults[base] == nil {
				mults[base] = make(map[int]float64)
			}
			if _, seen := mults[base][s.Index]; !seen {
				mults[base][s.Index] = s.Value
			}
		}

		group := slots[base]
		if group == nil {
			group = make(map[int]*pendingFrame)
			slots[base] = group
		}
		// Sorted input means the first region to claim a slot has the smallest name.
		if _, taken := group[idx]; !taken {
			group[idx] = &pendingFrame{
				index: idx,
				raw:   src.Name,
				region: Region{
					Name:            src.Name,
					Kind:            AnimFrame,
					Page:            src.Page,
					Bounds:          src.Bounds,
					Source:          src,
					SpeedMultiplier: 1,
				},
			}
		}
	}

	for base, group := range slots {
		indices := make([]int, 0, len(group))
		for i := range group {
			indices = append(indices, i)
		}
		sort.Ints(indices)

		frames := make([]Region, 0, len(indices))
		for _, i := range indices {
			pf := group[i]
			if m, ok := mults[base][pf.index]; ok {
				pf.region.SpeedMultiplier = m
			}
			ref := FrameRef{Group: base, Position: len(frames)}
			x.frames[naming.FrameName(base, pf.index)] = ref
			if pf.raw != naming.FrameName(base, pf.index) {
				x.frames[pf.raw] = ref
			}
			frames = append(frames, pf.region)
		}
		x.groups[base] = frames
	}
	x.stats.Groups = len(x.groups)
}

func (x *Index) addPlain(src atlas.Region) {
	r := Region{
		Name:            src.Name,
		Kind:            Plain,
		Page:            src.Page,
		Bounds:          src.Bounds,
		Source:          src,
		SpeedMultiplier: 1,
	}
	x.stats.Plain++
	if src.Index >= 0 {
		x.indexed[src.FullName()] = r
	}
	// Input is sorted by (name, index): the lowest index wins the bare name.
	if _, exists := x.regions[src.Name]; !exists {
		x.regions[src.Name] = r
	}
}

// Lookup resolves name through the frame map first, then plain regions.
func (x *Index) Lookup(name string) (Region, bool) {
	if ref, ok := x.frames[name]; ok {
		return x.groups[ref.Group][ref.Position], true
	}
	r, ok := x.regions[name]
	return r, ok
}

// Region resolves name or returns ErrRegionNotFound listing similar names.
func (x *Index) Region(name string) (Region, error) {
	if r, ok := x.Lookup(name); ok {
		return r, nil
	}
	return Region{}, x.notFound(name)
}

// LookupGroup returns the compacted frames of a group.
func (x *Index) LookupGroup(name string) ([]Region, bool) {
	g, ok := x.groups[name]
	return g, ok
}

// Group returns the frames of a group or ErrGroupNotFound.
func (x *Index) Group(name string) ([]Region, error) {
	if g, ok := x.groups[name]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
}

// Frame returns the compacted position of an original frame name.
func (x *Index) Frame(name string) (FrameRef, bool) {
	ref, ok := x.frames[name]
	return ref, ok
}

// Has reports whether name is a frame, a plain region or a group.
func (x *Index) Has(name string) bool {
	if _, ok := x.frames[name]; ok {
		return true
	}
	if _, ok := x.regions[name]; ok {
		return true
	}
	_, ok := x.groups[name]
	return ok
}

// FindRaw resolves the file name an artist used for an image, e.g. the
// names a tile map editor stores. The extension is ignored, and "foo_3"
// resolves the packer-indexed region foo #3.
func (x *Index) FindRaw(rawImageName string) (Region, error) {
	name := strings.TrimSuffix(rawImageName, pathExt(rawImageName))
	if r, ok := x.indexed[name]; ok {
		return r, nil
	}
	return x.Region(name)
}

// imageExts are the extensions FindRaw strips. Region names may contain dots
// ("fire-2=1.5_n0"), so arbitrary extensions are not removed.
var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tga": true}

func pathExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || strings.ContainsRune(name[i:], '/') {
		return ""
	}
	if ext := name[i:]; imageExts[strings.ToLower(ext)] {
		return ext
	}
	return ""
}

// Names returns every resolvable single-region name, sorted.
func (x *Index) Names() []string {
	names := make([]string, 0, len(x.regions)+len(x.frames))
	for n := range x.regions {
		names = append(names, n)
	}
	for n := range x.frames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GroupNames returns every group name, sorted.
func (x *Index) GroupNames() []string {
	names := make([]string, 0, len(x.groups))
	for n := range x.groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stats returns region counts.
func (x *Index) Stats() Stats {
	return x.stats
}
