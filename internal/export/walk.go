package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang-collections/collections/queue"
)

// SourceFile is a file found under the working tree during a run.
type SourceFile struct {
	Path    string // Absolute or root-joined path
	Rel     string // Slash-separated path relative to the scanned root
	Size    int64
	ModTime time.Time
}

// Name returns the file name.
func (f SourceFile) Name() string {
	return filepath.Base(f.Path)
}

// Ext returns the lower-cased extension.
func (f SourceFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Path))
}

type dirEntry struct {
	dir   string
	entry os.DirEntry
}

// scanFiles lists every regular file under root breadth-first, sorted by Rel.
func scanFiles(root string) ([]SourceFile, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	pending := queue.New()
	for _, e := range entries {
		pending.Enqueue(dirEntry{dir: root, entry: e})
	}

	var files []SourceFile
	for pending.Len() > 0 {
		item := pending.Dequeue().(dirEntry)
		path := filepath.Join(item.dir, item.entry.Name())

		if item.entry.IsDir() {
			children, err := os.ReadDir(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			for _, c := range children {
				pending.Enqueue(dirEntry{dir: path, entry: c})
			}
			continue
		}
		if !item.entry.Type().IsRegular() {
			continue
		}

		info, err := item.entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		files = append(files, SourceFile{
			Path:    path,
			Rel:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// copyTree copies every file under src into dst, keeping modification times
// so merge ordering and change detection see the originals.
func copyTree(src, dst string) (int, error) {
	files, err := scanFiles(src)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		target := filepath.Join(dst, filepath.FromSlash(f.Rel))
		if err := copyFile(f.Path, target); err != nil {
			return 0, err
		}
		if err := os.Chtimes(target, f.ModTime, f.ModTime); err != nil {
			return 0, fmt.Errorf("preserving mtime of %s: %w", f.Rel, err)
		}
	}
	return len(files), nil
}

// copyFile copies src to dst, overwriting dst and creating parent directories.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}
