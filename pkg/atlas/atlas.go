// Package atlas models packed texture atlas metadata and reads/writes it in
// the libGDX text format and the TexturePacker JSON array format.
package atlas

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// Atlas format errors.
var (
	ErrNoPages        = errors.New("atlas has no pages")
	ErrRegionNoPage   = errors.New("region declared before any page")
	ErrMalformedEntry = errors.New("malformed atlas entry")
	ErrUnknownFormat  = errors.New("unknown atlas format")
)

// Page is one packed texture image.
type Page struct {
	File    string // Image file name, relative to the metadata file
	Width   int
	Height  int
	Format  string
	Filter  string
	Repeat  string
	Regions []Region
}

// Region is one named sub-image inside a page.
type Region struct {
	Name    string
	Index   int // Packer index for "name_<n>" images, -1 otherwise
	Page    int
	Bounds  image.Rectangle
	OrigW   int // Untrimmed size
	OrigH   int
	OffsetX int
	OffsetY int
	Rotated bool
}

// FullName returns the name the region had before the packer split off its index.
func (r Region) FullName() string {
	if r.Index < 0 {
		return r.Name
	}
	return fmt.Sprintf("%s_%d", r.Name, r.Index)
}

// Atlas is the parsed metadata of a packed atlas.
type Atlas struct {
	Pages []Page
}

// Regions returns every region across all pages, in page order.
func (a *Atlas) Regions() []Region {
	var out []Region
	for _, p := range a.Pages {
		out = append(out, p.Regions...)
	}
	return out
}

// RegionCount returns the total number of regions.
func (a *Atlas) RegionCount() int {
	n := 0
	for _, p := range a.Pages {
		n += len(p.Regions)
	}
	return n
}

// PagePath resolves the image path of page i relative to the metadata file at metaPath.
func (a *Atlas) PagePath(metaPath string, i int) string {
	return filepath.Join(filepath.Dir(metaPath), a.Pages[i].File)
}

// Format identifiers, matching file extensions.
const (
	ExtGDX  = ".atlas"
	ExtJSON = ".json"
)

// Parse decodes atlas metadata, picking the format from the file extension.
func Parse(data []byte, ext string) (*Atlas, error) {
	switch strings.ToLower(ext) {
	case ExtGDX:
		return ParseGDX(data)
	case ExtJSON:
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// ParseFile reads and decodes an atlas metadata file from disk.
func ParseFile(path string) (*Atlas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading atlas file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}
