package export

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ManifestFile is the bbolt database recording the last successful pack.
const ManifestFile = ".manifest.db"

// ErrPipelineBusy means another export holds the manifest lock.
var ErrPipelineBusy = errors.New("another export is running on this output directory")

var (
	bucketMeta  = []byte("meta")
	bucketFiles = []byte("files")

	keyGeneratedAt = []byte("generated_at")
	keySettings    = []byte("settings")
)

// Manifest is the record of what the current atlas was built from. Holding it
// open holds an exclusive file lock, so at most one export runs per output directory.
type Manifest struct {
	db *bolt.DB
}

// OpenManifest opens (creating if needed) the manifest inside dir.
func OpenManifest(dir string, timeout time.Duration) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	db, err := bolt.Open(filepath.Join(dir, ManifestFile), 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, ErrPipelineBusy
		}
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	return &Manifest{db: db}, nil
}

// Close releases the lock.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// FileRecord is the stored signature of one source file.
type FileRecord struct {
	Size    int64
	ModTime time.Time
	Hash    string // hex SHA-256, empty when not computed
}

func (r FileRecord) encode() []byte {
	return []byte(fmt.Sprintf("%d|%d|%s", r.Size, r.ModTime.UnixNano(), r.Hash))
}

func decodeRecord(v []byte) (FileRecord, error) {
	parts := strings.SplitN(string(v), "|", 3)
	if len(parts) != 3 {
		return FileRecord{}, fmt.Errorf("malformed record %q", v)
	}
	size, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return FileRecord{}, err
	}
	ns, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return FileRecord{}, err
	}
	return FileRecord{Size: size, ModTime: time.Unix(0, ns), Hash: parts[2]}, nil
}

// Snapshot is the signature of a source tree at one moment.
type Snapshot map[string]FileRecord

// TakeSnapshot signs every file under root; hashes are computed when withHash is set.
func TakeSnapshot(root string, withHash bool) (Snapshot, error) {
	files, err := scanFiles(root)
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(files))
	for _, f := range files {
		rec := FileRecord{Size: f.Size, ModTime: f.ModTime}
		if withHash {
			if rec.Hash, err = hashFile(f.Path); err != nil {
				return nil, err
			}
		}
		snap[f.Rel] = rec
	}
	return snap, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Recorded is the content of a manifest.
type Recorded struct {
	GeneratedAt time.Time
	Settings    string
	Files       Snapshot
}

// Load reads the manifest. ok is false when nothing was recorded yet.
func (m *Manifest) Load() (rec Recorded, ok bool, err error) {
	err = m.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		files := tx.Bucket(bucketFiles)
		if meta == nil || files == nil {
			return nil
		}
		gen := meta.Get(keyGeneratedAt)
		if gen == nil {
			return nil
		}
		ns, err := strconv.ParseInt(string(gen), 10, 64)
		if err != nil {
			return fmt.Errorf("malformed generation time: %w", err)
		}

		rec.GeneratedAt = time.Unix(0, ns)
		rec.Settings = string(meta.Get(keySettings))
		rec.Files = make(Snapshot)
		if err := files.ForEach(func(k, v []byte) error {
			r, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("file %s: %w", k, err)
			}
			rec.Files[string(k)] = r
			return nil
		}); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return rec, ok, err
}

// Record replaces the manifest content in one transaction.
func (m *Manifest) Record(rec Recorded) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketFiles) != nil {
			if err := tx.DeleteBucket(bucketFiles); err != nil {
				return err
			}
		}
		files, err := tx.CreateBucket(bucketFiles)
		if err != nil {
			return err
		}
		for rel, r := range rec.Files {
			if err := files.Put([]byte(rel), r.encode()); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if err := meta.Put(keySettings, []byte(rec.Settings)); err != nil {
			return err
		}
		return meta.Put(keyGeneratedAt, []byte(strconv.FormatInt(rec.GeneratedAt.UnixNano(), 10)))
	})
}

// Invalidate drops the generation time so the next check always repacks.
func (m *Manifest) Invalidate() error {
	return m.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}
		return meta.Delete(keyGeneratedAt)
	})
}
