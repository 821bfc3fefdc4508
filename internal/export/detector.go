package export

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/pixelforge/internal/config"
)

// Detector decides whether the atlas must be packed again.
// It never modifies the source tree or the manifest.
type Detector struct {
	manifest  *Manifest
	mode      string
	settings  string
	artifacts []string
	log       *zap.Logger
}

// NewDetector returns a detector comparing sources against manifest.
// artifacts are the metadata files a finished pack leaves behind.
func NewDetector(manifest *Manifest, mode, settings string, artifacts []string, log *zap.Logger) *Detector {
	return &Detector{
		manifest:  manifest,
		mode:      mode,
		settings:  settings,
		artifacts: artifacts,
		log:       log,
	}
}

// ShouldRepack reports whether sourceDir changed since the last pack and why.
// Any doubt (missing or unreadable records) answers true.
func (d *Detector) ShouldRepack(sourceDir string) (bool, string) {
	for _, a := range d.artifacts {
		if _, err := os.Stat(a); err != nil {
			return true, fmt.Sprintf("atlas metadata %s missing", a)
		}
	}

	rec, ok, err := d.manifest.Load()
	if err != nil {
		d.log.Warn("Unreadable manifest, forcing repack", zap.Error(err))
		return true, "manifest unreadable"
	}
	if !ok {
		return true, "no previous pack recorded"
	}
	if rec.Settings != d.settings {
		return true, "settings changed"
	}

	snap, err := TakeSnapshot(sourceDir, d.mode == config.DetectHash)
	if err != nil {
		d.log.Warn("Cannot scan sources, forcing repack", zap.Error(err))
		return true, "source scan failed"
	}

	return compareSnapshot(rec, snap, d.mode)
}

func compareSnapshot(rec Recorded, snap Snapshot, mode string) (bool, string) {
	if len(snap) != len(rec.Files) {
		return true, fmt.Sprintf("file count changed (%d -> %d)", len(rec.Files), len(snap))
	}
	for rel, cur := range snap {
		old, ok := rec.Files[rel]
		if !ok {
			return true, fmt.Sprintf("new file %s", rel)
		}
		if cur.Size != old.Size {
			return true, fmt.Sprintf("%s changed size", rel)
		}
		switch mode {
		case config.DetectHash:
			if old.Hash == "" || cur.Hash != old.Hash {
				return true, fmt.Sprintf("%s content changed", rel)
			}
		default:
			if cur.ModTime.After(rec.GeneratedAt) || !cur.ModTime.Equal(old.ModTime) {
				return true, fmt.Sprintf("%s modified", rel)
			}
		}
	}
	return false, "up to date"
}
