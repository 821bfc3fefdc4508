package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/internal/export"
	"github.com/Faultbox/pixelforge/internal/logger"
	"github.com/Faultbox/pixelforge/internal/registry"
	"github.com/Faultbox/pixelforge/pkg/atlasindex"
	"github.com/Faultbox/pixelforge/pkg/naming"
)

type exportCmd struct {
	Force bool `short:"f" help:"Pack even when sources are unchanged."`
}

func (c *exportCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}

	res, err := export.New(cfg, logger.Named("export")).Run(c.Force)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Printf("Atlas up to date (%s)\n", res.Reason)
		return nil
	}

	fmt.Printf("Atlas:    %s\n", strings.Join(res.Metadata, ", "))
	fmt.Printf("Pages:    %d\n", res.Pages)
	fmt.Printf("Regions:  %d\n", res.Regions)
	fmt.Printf("Merged:   %d\n", res.Merged)
	fmt.Printf("Sliced:   %d (%d frames)\n", res.Sliced, res.Frames)
	fmt.Printf("Fonts:    %d\n", res.Fonts)
	fmt.Printf("Deleted:  %d\n", res.Deleted)
	if failed := res.Failed + res.MergeFailed; failed > 0 {
		fmt.Printf("Failed:   %d (see log)\n", failed)
	}
	if res.Unpacked > 0 {
		fmt.Printf("Unpacked: %d (see log)\n", res.Unpacked)
	}
	fmt.Printf("Took:     %s\n", res.Duration.Round(time.Millisecond))
	return nil
}

type checkCmd struct{}

func (c *checkCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}

	repack, reason, err := export.New(cfg, logger.Named("export")).Check()
	if err != nil {
		return err
	}
	if repack {
		fmt.Printf("Repack needed: %s\n", reason)
		return nil
	}
	fmt.Println("Atlas up to date")
	return nil
}

type inspectCmd struct {
	Regions bool `short:"r" help:"List every region name."`
	Groups  bool `short:"g" help:"List animations with their frame counts."`
}

func (c *inspectCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}
	cfg.Runtime.ExportOnLoad = false

	reg := registry.New(cfg, logger.Named("registry"))
	if err := reg.Load(); err != nil {
		return err
	}
	defer reg.Dispose()

	a, err := reg.Atlas()
	if err != nil {
		return err
	}
	st := reg.Stats()

	fmt.Printf("Pages:    %d\n", len(a.Pages))
	for _, p := range a.Pages {
		fmt.Printf("  %-20s %dx%d  %d regions\n", p.File, p.Width, p.Height, len(p.Regions))
	}
	fmt.Printf("Regions:  %d\n", st.Plain)
	fmt.Printf("Frames:   %d in %d animations\n", st.Frames, st.Groups)

	if c.Groups {
		fmt.Println()
		fmt.Println("Animations:")
		for _, name := range reg.GroupNames() {
			frames, err := reg.Group(name)
			if err != nil {
				return err
			}
			fmt.Printf("  %-30s %d frames%s\n", name, len(frames), speedSummary(frames))
		}
	}
	if c.Regions {
		fmt.Println()
		fmt.Println("Regions:")
		for _, name := range reg.Names() {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func speedSummary(frames []atlasindex.Region) string {
	var parts []string
	for i, f := range frames {
		if f.SpeedMultiplier != 1 {
			parts = append(parts, fmt.Sprintf("%d=%g", i, f.SpeedMultiplier))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "  speeds " + strings.Join(parts, " ")
}

type sliceCmd struct {
	File string `arg:"" help:"Tileset image (name must carry -<W>x<H>)." type:"existingfile"`
	Out  string `short:"o" help:"Directory for the frames (default: ./<name>-frames)." type:"path"`
}

func (c *sliceCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}

	ts, ok := naming.ParseTileset(filepath.Base(c.File))
	if !ok {
		return fmt.Errorf("%s does not follow the tileset naming (<name>[-crop]-<W>x<H>[-n<count>])", filepath.Base(c.File))
	}
	out := c.Out
	if out == "" {
		out = naming.TrimExt(c.File) + "-frames"
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}

	px := export.Pixels{Sentinel: cfg.Export.Sentinel()}
	slicer := export.NewSlicer(px, cfg.Export.KeepPartialCells, cfg.Export.IgnoreBlankRegions, logger.Named("slicer"))
	written, err := slicer.SliceTo(c.File, out, ts)
	if err != nil {
		return err
	}

	fmt.Printf("Cells:    %dx%d\n", ts.CellWidth, ts.CellHeight)
	if ts.HasFrameCount {
		fmt.Printf("Limit:    %d\n", ts.FrameCount)
	}
	fmt.Printf("Frames:   %d -> %s\n", len(written), out)
	for _, w := range written {
		fmt.Printf("  %s\n", filepath.Base(w))
	}
	return nil
}

type findCmd struct {
	Name string `arg:"" help:"Region, frame, animation or raw image name."`
}

func (c *findCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}

	reg := registry.New(cfg, logger.Named("registry"))
	if err := reg.Load(); err != nil {
		return err
	}
	defer reg.Dispose()

	if frames, err := reg.Group(c.Name); err == nil {
		fmt.Printf("Animation %s: %d frames\n", c.Name, len(frames))
		for i, f := range frames {
			printRegion(fmt.Sprintf("[%d]", i), f)
		}
		return nil
	}

	r, err := reg.FindRaw(c.Name)
	if err != nil {
		return err
	}
	printRegion(c.Name, r)
	return nil
}

func printRegion(label string, r atlasindex.Region) {
	b := r.Bounds
	fmt.Printf("  %-12s %-30s page %d  at (%d,%d) size %dx%d  %s",
		label, r.Name, r.Page, b.Min.X, b.Min.Y, b.Dx(), b.Dy(), r.Kind)
	if r.SpeedMultiplier != 1 {
		fmt.Printf("  speed x%g", r.SpeedMultiplier)
	}
	fmt.Println()
}

type configCmd struct {
	Save bool   `help:"Write the effective config to the user config directory."`
	To   string `help:"Write the effective config to this file." type:"path"`
}

func (c *configCmd) Run(g *Globals) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}

	var path string
	switch {
	case c.To != "":
		path, err = c.To, cfg.SaveTo(c.To)
	case c.Save:
		path, err = config.UserPath(), cfg.Save()
	default:
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}
