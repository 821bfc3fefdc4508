// Package naming parses the filename conventions used by raw art and packed atlas regions.
//
// Artists encode processing directives in file and folder names:
//
//	torch-crop-16x16-n3.png   tileset, cropped, 16x16 cells, 3 frames
//	walk_#-32x32.png          one animation per row: walk_0, walk_1, ...
//	house-merge/              every image inside is flattened into house.png
//	fire-2=1.5_n2             frame 2 of "fire" plays 1.5x as long
package naming

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	tilesetRe   = regexp.MustCompile(`^(.*?)(-crop)?-(\d+)x(\d+)(-n(\d+))?(-8bitmin)?$`)
	mergeRe     = regexp.MustCompile(`^(.*?)-merge$`)
	frameRe     = regexp.MustCompile(`^(.*?)_n(\d+)$`)
	speedRe     = regexp.MustCompile(`-(\d+)=([+-]?(\d*\.)?\d+)`)
	indexedRe   = regexp.MustCompile(`^(.*)_(\d+)$`)
	hashTagRune = "#"
)

// Tileset holds the slicing directives parsed from a tileset filename.
type Tileset struct {
	Base          string
	Cropped       bool
	CellWidth     int
	CellHeight    int
	FrameCount    int
	HasFrameCount bool
	HashTag       bool // Base contains '#': each row is its own animation
	Minimal       bool // -8bitmin; parsed but not acted on
}

// RowName returns the base name for animation row n, replacing the first '#'.
func (t Tileset) RowName(row int) string {
	return strings.Replace(t.Base, hashTagRune, strconv.Itoa(row), 1)
}

// TrimExt returns the file name without directory or extension.
func TrimExt(name string) string {
	name = filepath.Base(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ParseTileset parses a filename (extension optional) against the tileset grammar.
// ok is false for names that are plain images.
func ParseTileset(name string) (Tileset, bool) {
	m := tilesetRe.FindStringSubmatch(TrimExt(name))
	if m == nil {
		return Tileset{}, false
	}

	w, errW := strconv.Atoi(m[3])
	h, errH := strconv.Atoi(m[4])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Tileset{}, false
	}

	ts := Tileset{
		Base:       m[1],
		Cropped:    m[2] != "",
		CellWidth:  w,
		CellHeight: h,
		HashTag:    strings.Contains(m[1], hashTagRune),
		Minimal:    m[7] != "",
	}
	if m[6] != "" {
		n, err := strconv.Atoi(m[6])
		if err != nil {
			return Tileset{}, false
		}
		ts.FrameCount = n
		ts.HasFrameCount = true
	}
	return ts, true
}

// ParseMergeFolder returns the output name for a "<name>-merge" folder.
func ParseMergeFolder(dirName string) (string, bool) {
	m := mergeRe.FindStringSubmatch(filepath.Base(dirName))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FrameName is the name of a sliced frame file, without extension.
func FrameName(base string, index int) string {
	return base + "_n" + strconv.Itoa(index)
}

// ParseFrame splits an atlas region name of the form "<base>_n<index>".
func ParseFrame(name string) (base string, index int, ok bool) {
	m := frameRe.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], index, true
}

// SpeedMultiplier is one "-<index>=<value>" directive.
type SpeedMultiplier struct {
	Index int
	Value float64
}

// ParseSpeedMultipliers extracts every speed directive from name and returns
// the name with all of them removed.
func ParseSpeedMultipliers(name string) (stripped string, mults []SpeedMultiplier) {
	for _, m := range speedRe.FindAllStringSubmatch(name, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		mults = append(mults, SpeedMultiplier{Index: idx, Value: v})
	}
	return speedRe.ReplaceAllString(name, ""), mults
}

// ParseIndexed splits a packer-indexed name "foo_3" into ("foo", 3).
// Frame names ("foo_n3") are not indexed names.
func ParseIndexed(name string) (base string, index int, ok bool) {
	m := indexedRe.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], index, true
}

// IsIgnored reports whether a raw file is marked for deletion by a leading underscore.
func IsIgnored(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "_")
}
