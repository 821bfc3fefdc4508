// Package export turns a raw art tree into a packed texture atlas.
//
// A run is gated by change detection, then flattens merge folders, slices
// tilesets into frames, relocates bitmap fonts, drops ignored files and
// finally packs every remaining image. Destructive steps operate on a staging
// copy of the source tree unless the configuration asks for in-place work.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/pixelforge/internal/config"
	"github.com/Faultbox/pixelforge/pkg/naming"
)

// AtlasDir is the output subdirectory holding pages, metadata and the manifest.
const AtlasDir = "atlas"

// DefaultLockTimeout is how long a run waits for another run to finish.
const DefaultLockTimeout = time.Second

// Result summarizes one run.
type Result struct {
	Skipped     bool   // Sources unchanged, nothing done
	Reason      string // Why the run packed or skipped
	Merged      int
	MergeFailed int
	Sliced      int // Tilesets sliced
	Frames      int // Frames written by the slicer
	Fonts       int
	Deleted     int // Ignored files removed
	Failed      int // Files left unprocessed after an error
	Unpacked    int // Images the packer could not decode
	Pages       int
	Regions     int
	Metadata    []string
	Duration    time.Duration
}

// Exporter runs the export pipeline for one configuration.
type Exporter struct {
	cfg         *config.Config
	log         *zap.Logger
	LockTimeout time.Duration
}

// New returns an exporter. log may be nil.
func New(cfg *config.Config, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{cfg: cfg, log: log, LockTimeout: DefaultLockTimeout}
}

// AtlasDir returns the directory pages and metadata are written to.
func (e *Exporter) AtlasDir() string {
	return filepath.Join(e.cfg.Paths.Output, AtlasDir)
}

// MetadataPaths returns the metadata files a successful run leaves behind.
func (e *Exporter) MetadataPaths() []string {
	return e.packer().MetadataPaths(e.AtlasDir())
}

func (e *Exporter) packer() *Packer {
	return NewPacker(e.cfg.Pack, e.log.Named("packer"))
}

func (e *Exporter) settings() string {
	return fmt.Sprintf("%+v|%+v", e.cfg.Export, e.cfg.Pack)
}

func (e *Exporter) detector(m *Manifest) *Detector {
	return NewDetector(m, e.cfg.Export.ChangeDetection, e.settings(), e.MetadataPaths(), e.log.Named("detector"))
}

// Check reports whether a run would repack, without changing anything.
func (e *Exporter) Check() (bool, string, error) {
	if err := e.checkSource(); err != nil {
		return false, "", err
	}
	m, err := OpenManifest(e.AtlasDir(), e.LockTimeout)
	if err != nil {
		return false, "", err
	}
	defer m.Close()

	repack, reason := e.detector(m).ShouldRepack(e.cfg.Paths.Source)
	return repack, reason, nil
}

func (e *Exporter) checkSource() error {
	info, err := os.Stat(e.cfg.Paths.Source)
	if err != nil {
		return fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", e.cfg.Paths.Source)
	}
	return nil
}

// Run executes the pipeline. Unless force is set, an unchanged source tree
// returns a skipped result without touching anything.
func (e *Exporter) Run(force bool) (*Result, error) {
	start := time.Now()
	if err := e.checkSource(); err != nil {
		return nil, err
	}

	manifest, err := OpenManifest(e.AtlasDir(), e.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer manifest.Close()

	res := &Result{Reason: "forced"}
	if !force {
		repack, reason := e.detector(manifest).ShouldRepack(e.cfg.Paths.Source)
		res.Reason = reason
		if !repack {
			res.Skipped = true
			res.Duration = time.Since(start)
			e.log.Info("Atlas up to date", zap.String("reason", reason))
			return res, nil
		}
	}
	e.log.Info("Exporting atlas",
		zap.String("source", e.cfg.Paths.Source),
		zap.String("reason", res.Reason),
		zap.Bool("in_place", e.cfg.Export.InPlace))

	if err := manifest.Invalidate(); err != nil {
		return nil, fmt.Errorf("invalidating manifest: %w", err)
	}

	withHash := e.cfg.Export.ChangeDetection == config.DetectHash
	var before Snapshot
	if !e.cfg.Export.InPlace {
		// Staging leaves the source untouched, so its state now is what gets packed.
		if before, err = TakeSnapshot(e.cfg.Paths.Source, withHash); err != nil {
			return nil, err
		}
	}

	work, cleanup, err := e.prepareWork()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	generated, err := e.preprocess(work, res)
	if err != nil {
		return nil, err
	}

	packer := e.packer()
	sprites, skipped, err := packer.Collect(work)
	if err != nil {
		return nil, fmt.Errorf("collecting images: %w", err)
	}
	res.Unpacked = len(skipped)
	a, err := packer.Pack(sprites, e.AtlasDir())
	if err != nil {
		return nil, fmt.Errorf("packing: %w", err)
	}
	if res.Metadata, err = packer.WriteMetadata(a, e.AtlasDir()); err != nil {
		return nil, err
	}
	res.Pages = len(a.Pages)
	res.Regions = a.RegionCount()

	rec := Recorded{GeneratedAt: start, Settings: e.settings(), Files: before}
	if e.cfg.Export.InPlace {
		for _, p := range generated {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				e.log.Warn("Cannot remove generated frame", zap.String("file", p), zap.Error(err))
			}
		}
		rec.GeneratedAt = time.Now()
		if rec.Files, err = TakeSnapshot(e.cfg.Paths.Source, withHash); err != nil {
			return nil, err
		}
	}
	if err := manifest.Record(rec); err != nil {
		return nil, fmt.Errorf("recording manifest: %w", err)
	}

	res.Duration = time.Since(start)
	e.log.Info("Export finished",
		zap.Int("pages", res.Pages),
		zap.Int("regions", res.Regions),
		zap.Int("failed", res.Failed+res.MergeFailed),
		zap.Int("unpacked", res.Unpacked),
		zap.Duration("took", res.Duration))
	return res, nil
}

// prepareWork returns the tree destructive steps run on and a cleanup func.
func (e *Exporter) prepareWork() (string, func(), error) {
	if e.cfg.Export.InPlace {
		return e.cfg.Paths.Source, func() {}, nil
	}

	work := e.cfg.Paths.Work
	if work == "" {
		tmp, err := os.MkdirTemp("", "pixelforge-*")
		if err != nil {
			return "", nil, fmt.Errorf("creating staging dir: %w", err)
		}
		work = tmp
	} else if err := os.RemoveAll(work); err != nil {
		return "", nil, fmt.Errorf("clearing staging dir: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(work); err != nil {
			e.log.Warn("Cannot remove staging dir", zap.String("dir", work), zap.Error(err))
		}
	}
	if err := os.MkdirAll(work, 0755); err != nil {
		cleanup()
		return "", nil, err
	}
	n, err := copyTree(e.cfg.Paths.Source, work)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging sources: %w", err)
	}
	e.log.Debug("Staged sources", zap.String("dir", work), zap.Int("files", n))
	return work, cleanup, nil
}

// preprocess merges, slices, relocates and deletes inside work. It returns
// the frame files the slicer wrote.
func (e *Exporter) preprocess(work string, res *Result) ([]string, error) {
	px := Pixels{Sentinel: e.cfg.Export.Sentinel()}

	files, err := scanFiles(work)
	if err != nil {
		return nil, err
	}
	merger := NewMerger(px, e.cfg.Export.MergeOrder, e.log.Named("merge"))
	res.Merged, res.MergeFailed = merger.MergeAll(files)

	if files, err = scanFiles(work); err != nil {
		return nil, err
	}
	slicer := NewSlicer(px, e.cfg.Export.KeepPartialCells, e.cfg.Export.IgnoreBlankRegions, e.log.Named("slicer"))
	fonts := NewFontRelocator(e.cfg.Paths.Output, e.cfg.Export.FontExtension, e.log.Named("fonts"))

	var generated []string
	for _, f := range files {
		switch {
		case naming.IsIgnored(f.Name()):
			if err := os.Remove(f.Path); err != nil {
				e.log.Warn("Cannot delete ignored file", zap.String("file", f.Rel), zap.Error(err))
				res.Failed++
				continue
			}
			res.Deleted++

		case fonts.IsFont(f):
			if err := fonts.Relocate(f); err != nil {
				e.log.Warn("Font not relocated", zap.String("file", f.Rel), zap.Error(err))
				res.Failed++
				continue
			}
			res.Fonts++

		case f.Ext() == ".png":
			ts, ok := naming.ParseTileset(f.Name())
			if !ok {
				continue
			}
			written, err := slicer.SliceFile(f.Path, ts)
			generated = append(generated, written...)
			res.Frames += len(written)
			if err != nil {
				e.log.Warn("Tileset not sliced", zap.String("file", f.Rel), zap.Error(err))
				res.Failed++
				continue
			}
			res.Sliced++
		}
	}
	return generated, nil
}
