package atlas

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"
)

// ParseGDX parses the libGDX texture atlas text format. Both the legacy layout
// (xy/size/orig/offset) and the newer compact layout (bounds/offsets) are accepted.
func ParseGDX(data []byte) (*Atlas, error) {
	a := &Atlas{}
	var page *Page
	var region *Region

	flushRegion := func() {
		if region != nil {
			if region.OrigW == 0 && region.OrigH == 0 {
				region.OrigW, region.OrigH = region.Bounds.Dx(), region.Bounds.Dy()
				if region.Rotated {
					region.OrigW, region.OrigH = region.OrigH, region.OrigW
				}
			}
			page.Regions = append(page.Regions, *region)
			region = nil
		}
	}
	flushPage := func() {
		flushRegion()
		if page != nil {
			a.Pages = append(a.Pages, *page)
			page = nil
		}
	}

	var size image.Point
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			flushPage()
			continue
		}

		if page == nil {
			page = &Page{File: line}
			continue
		}

		key, value, hasColon := strings.Cut(line, ":")

		if !hasColon {
			flushRegion()
			region = &Region{Name: line, Index: -1, Page: len(a.Pages)}
			size = image.Point{}
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Page fields precede the first region; every field after a region name
		// belongs to that region, indented (legacy) or not (compact).
		if region == nil {
			if err := applyPageField(page, key, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		if err := applyRegionField(region, &size, key, value); err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", lineNo, region.Name, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading atlas: %w", err)
	}
	flushPage()

	if len(a.Pages) == 0 {
		return nil, ErrNoPages
	}
	return a, nil
}

func applyPageField(p *Page, key, value string) error {
	switch key {
	case "size":
		v, err := parseInts(value, 2)
		if err != nil {
			return err
		}
		p.Width, p.Height = v[0], v[1]
	case "format":
		p.Format = value
	case "filter":
		p.Filter = strings.TrimSpace(strings.Split(value, ",")[0])
	case "repeat":
		p.Repeat = value
	case "pma":
	default:
		// A region name is the only colon-free line; anything else is unknown metadata.
	}
	return nil
}

func applyRegionField(r *Region, size *image.Point, key, value string) error {
	switch key {
	case "rotate":
		r.Rotated = value == "true" || value == "90"
		r.Bounds = regionBounds(r.Bounds.Min, *size, r.Rotated)
	case "xy":
		v, err := parseInts(value, 2)
		if err != nil {
			return err
		}
		r.Bounds = regionBounds(image.Pt(v[0], v[1]), *size, r.Rotated)
	case "size":
		v, err := parseInts(value, 2)
		if err != nil {
			return err
		}
		*size = image.Pt(v[0], v[1])
		r.Bounds = regionBounds(r.Bounds.Min, *size, r.Rotated)
	case "bounds":
		v, err := parseInts(value, 4)
		if err != nil {
			return err
		}
		*size = image.Pt(v[2], v[3])
		r.Bounds = regionBounds(image.Pt(v[0], v[1]), *size, r.Rotated)
	case "orig":
		v, err := parseInts(value, 2)
		if err != nil {
			return err
		}
		r.OrigW, r.OrigH = v[0], v[1]
	case "offset":
		v, err := parseInts(value, 2)
		if err != nil {
			return err
		}
		r.OffsetX, r.OffsetY = v[0], v[1]
	case "offsets":
		v, err := parseInts(value, 4)
		if err != nil {
			return err
		}
		r.OffsetX, r.OffsetY, r.OrigW, r.OrigH = v[0], v[1], v[2], v[3]
	case "index":
		v, err := parseInts(value, 1)
		if err != nil {
			return err
		}
		r.Index = v[0]
	}
	return nil
}

// regionBounds returns the packed rectangle; rotated regions occupy size transposed.
func regionBounds(min, size image.Point, rotated bool) image.Rectangle {
	if rotated {
		size.X, size.Y = size.Y, size.X
	}
	return image.Rectangle{Min: min, Max: min.Add(size)}
}

func parseInts(value string, n int) ([]int, error) {
	parts := strings.Split(value, ",")
	if len(parts) < n {
		return nil, fmt.Errorf("%w: expected %d values, got %q", ErrMalformedEntry, n, value)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedEntry, value)
		}
		out[i] = v
	}
	return out, nil
}

// WriteGDX writes the atlas in the legacy libGDX text layout.
func WriteGDX(w io.Writer, a *Atlas) error {
	bw := bufio.NewWriter(w)
	for _, p := range a.Pages {
		format := p.Format
		if format == "" {
			format = "RGBA8888"
		}
		filter := p.Filter
		if filter == "" {
			filter = "Nearest"
		}
		repeat := p.Repeat
		if repeat == "" {
			repeat = "none"
		}

		fmt.Fprintf(bw, "\n%s\n", p.File)
		fmt.Fprintf(bw, "size: %d, %d\n", p.Width, p.Height)
		fmt.Fprintf(bw, "format: %s\n", format)
		fmt.Fprintf(bw, "filter: %s, %s\n", filter, filter)
		fmt.Fprintf(bw, "repeat: %s\n", repeat)

		for _, r := range p.Regions {
			w, h := r.Bounds.Dx(), r.Bounds.Dy()
			if r.Rotated {
				w, h = h, w
			}
			fmt.Fprintf(bw, "%s\n", r.Name)
			fmt.Fprintf(bw, "  rotate: %t\n", r.Rotated)
			fmt.Fprintf(bw, "  xy: %d, %d\n", r.Bounds.Min.X, r.Bounds.Min.Y)
			fmt.Fprintf(bw, "  size: %d, %d\n", w, h)
			fmt.Fprintf(bw, "  orig: %d, %d\n", r.OrigW, r.OrigH)
			fmt.Fprintf(bw, "  offset: %d, %d\n", r.OffsetX, r.OffsetY)
			fmt.Fprintf(bw, "  index: %d\n", r.Index)
		}
	}
	return bw.Flush()
}
