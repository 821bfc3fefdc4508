package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FontsDir is the output subdirectory bitmap fonts are moved to.
const FontsDir = "fonts"

// FontRelocator copies bitmap font descriptors into the output fonts directory.
// The first font of a run clears fonts left by the previous run.
type FontRelocator struct {
	dir     string
	ext     string
	cleared bool
	log     *zap.Logger
}

// NewFontRelocator returns a relocator writing to <outputDir>/fonts.
func NewFontRelocator(outputDir, ext string, log *zap.Logger) *FontRelocator {
	return &FontRelocator{
		dir: filepath.Join(outputDir, FontsDir),
		ext: strings.ToLower(ext),
		log: log,
	}
}

// Dir returns the destination directory.
func (r *FontRelocator) Dir() string {
	return r.dir
}

// IsFont reports whether f is a font descriptor.
func (r *FontRelocator) IsFont(f SourceFile) bool {
	return f.Ext() == r.ext
}

// Relocate copies f into the fonts directory, overwriting any file of the same name.
func (r *FontRelocator) Relocate(f SourceFile) error {
	if !r.cleared {
		if err := r.clear(); err != nil {
			return err
		}
		r.cleared = true
	}

	dst := filepath.Join(r.dir, f.Name())
	if err := copyFile(f.Path, dst); err != nil {
		return fmt.Errorf("relocating font %s: %w", f.Name(), err)
	}
	r.log.Debug("Relocated font", zap.String("font", f.Name()))
	return nil
}

// clear creates the directory and removes stale descriptors. Other files are kept.
func (r *FontRelocator) clear() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("creating fonts directory: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(r.dir, "*"+r.ext))
	if err != nil {
		return err
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("removing stale font: %w", err)
		}
	}
	if len(stale) > 0 {
		r.log.Debug("Cleared stale fonts", zap.Int("count", len(stale)))
	}
	return nil
}
