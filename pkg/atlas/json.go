package atlas

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseJSON parses TexturePacker JSON. Both the hash layout (top-level
// "frames" + "meta.image") and the multi-page array layout ("textures") are accepted.
func ParseJSON(data []byte) (*Atlas, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedEntry)
	}
	doc := gjson.ParseBytes(data)

	a := &Atlas{}
	if textures := doc.Get("textures"); textures.IsArray() {
		textures.ForEach(func(_, tex gjson.Result) bool {
			a.Pages = append(a.Pages, parseJSONPage(tex, tex.Get("frames"), len(a.Pages)))
			return true
		})
	} else if frames := doc.Get("frames"); frames.Exists() {
		a.Pages = append(a.Pages, parseJSONPage(doc.Get("meta"), frames, 0))
	} else {
		return nil, fmt.Errorf("%w: neither \"frames\" nor \"textures\" present", ErrMalformedEntry)
	}

	if len(a.Pages) == 0 {
		return nil, ErrNoPages
	}
	return a, nil
}

// parseJSONPage reads the page header from meta and regions from frames.
// frames may be an object keyed by name or an array with "filename" entries.
func parseJSONPage(meta, frames gjson.Result, pageIndex int) Page {
	p := Page{
		File:   meta.Get("image").String(),
		Width:  int(meta.Get("size.w").Int()),
		Height: int(meta.Get("size.h").Int()),
		Format: meta.Get("format").String(),
		Filter: meta.Get("filter").String(),
	}

	add := func(name string, f gjson.Result) {
		x, y := int(f.Get("frame.x").Int()), int(f.Get("frame.y").Int())
		w, h := int(f.Get("frame.w").Int()), int(f.Get("frame.h").Int())
		r := Region{
			Name:    name,
			Index:   -1,
			Page:    pageIndex,
			Bounds:  image.Rect(x, y, x+w, y+h),
			OrigW:   int(f.Get("sourceSize.w").Int()),
			OrigH:   int(f.Get("sourceSize.h").Int()),
			OffsetX: int(f.Get("spriteSourceSize.x").Int()),
			OffsetY: int(f.Get("spriteSourceSize.y").Int()),
			Rotated: f.Get("rotated").Bool(),
		}
		if idx := f.Get("index"); idx.Exists() {
			r.Index = int(idx.Int())
			if r.Index >= 0 {
				if base, ok := splitIndexSuffix(name, r.Index); ok {
					r.Name = base
				}
			}
		}
		if r.OrigW == 0 && r.OrigH == 0 {
			r.OrigW, r.OrigH = w, h
		}
		p.Regions = append(p.Regions, r)
	}

	if frames.IsArray() {
		frames.ForEach(func(_, f gjson.Result) bool {
			add(f.Get("filename").String(), f)
			return true
		})
	} else {
		frames.ForEach(func(key, f gjson.Result) bool {
			add(key.String(), f)
			return true
		})
	}
	return p
}

// splitIndexSuffix strips "_<index>" from name when it is present.
func splitIndexSuffix(name string, index int) (string, bool) {
	suffix := fmt.Sprintf("_%d", index)
	if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
		return strings.TrimSuffix(name, suffix), true
	}
	return name, false
}

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame            jsonRect `json:"frame"`
	Rotated          bool     `json:"rotated"`
	Trimmed          bool     `json:"trimmed"`
	SpriteSourceSize jsonRect `json:"spriteSourceSize"`
	SourceSize       jsonSize `json:"sourceSize"`
	Index            int      `json:"index"`
}

type jsonPage struct {
	Image  string               `json:"image"`
	Format string               `json:"format,omitempty"`
	Filter string               `json:"filter,omitempty"`
	Size   jsonSize             `json:"size"`
	Frames map[string]jsonFrame `json:"frames"`
}

// WriteJSON writes the atlas in the TexturePacker multi-page array layout.
// Frame keys are full region names; the packer index is kept in "index".
func WriteJSON(w io.Writer, a *Atlas) error {
	doc := struct {
		Textures []jsonPage `json:"textures"`
	}{}

	for _, p := range a.Pages {
		jp := jsonPage{
			Image:  p.File,
			Format: p.Format,
			Filter: p.Filter,
			Size:   jsonSize{W: p.Width, H: p.Height},
			Frames: make(map[string]jsonFrame, len(p.Regions)),
		}
		for _, r := range p.Regions {
			jp.Frames[r.FullName()] = jsonFrame{
				Frame:            jsonRect{X: r.Bounds.Min.X, Y: r.Bounds.Min.Y, W: r.Bounds.Dx(), H: r.Bounds.Dy()},
				Rotated:          r.Rotated,
				Trimmed:          r.OrigW != r.Bounds.Dx() || r.OrigH != r.Bounds.Dy(),
				SpriteSourceSize: jsonRect{X: r.OffsetX, Y: r.OffsetY, W: r.Bounds.Dx(), H: r.Bounds.Dy()},
				SourceSize:       jsonSize{W: r.OrigW, H: r.OrigH},
				Index:            r.Index,
			}
		}
		doc.Textures = append(doc.Textures, jp)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}
