// atlastool is a CLI utility for exporting and inspecting pixelforge texture atlases.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/internal/logger"
)

const description = `Packs raw art into a texture atlas and inspects the result.

Examples:
  atlastool export
  atlastool export --force --source assets_raw/atlas --output generated
  atlastool check
  atlastool inspect --groups
  atlastool slice walk_#-32x32.png --out preview/
  atlastool find torch_n2
  atlastool config --source art --save`

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `short:"c" help:"Config file (default: ./pixelforge.yaml or the user config dir)." type:"path"`
	Source   string `help:"Raw assets directory." type:"path"`
	Output   string `help:"Generated output directory." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)."`
	LogFile  string `help:"Also write logs to this file, rotated."`
	Debug    bool   `short:"d" help:"Shortcut for --log-level=debug."`
	InPlace  bool   `help:"Process the source tree in place instead of a staging copy."`
	Hash     bool   `help:"Detect changes by content hash instead of modification time."`
}

// setup loads the configuration and starts logging.
func (g *Globals) setup() (*config.Config, error) {
	cfg, err := config.Load(g.Config, config.Overrides{
		Source:   g.Source,
		Output:   g.Output,
		LogLevel: g.LogLevel,
		Debug:    g.Debug,
		InPlace:  g.InPlace,
		Hash:     g.Hash,
	})
	if err != nil {
		return nil, err
	}
	if g.LogFile != "" {
		cfg.Logging.LogFile = g.LogFile
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, nil
}

type cli struct {
	Globals `embed:""`

	Export    exportCmd  `cmd:"" help:"Run the export pipeline when sources changed."`
	Check     checkCmd   `cmd:"" help:"Report whether the atlas is up to date."`
	Inspect   inspectCmd `cmd:"" help:"Show pages, regions and animations of the packed atlas."`
	Slice     sliceCmd   `cmd:"" help:"Preview how a tileset image would be sliced."`
	Find      findCmd    `cmd:"" help:"Resolve a region, frame or raw image name."`
	ConfigCmd configCmd  `cmd:"" name:"config" help:"Print or save the effective configuration."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("atlastool"),
		kong.Description(description),
		kong.UsageOnError(),
	)

	err := ctx.Run(&c.Globals)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
