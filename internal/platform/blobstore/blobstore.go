// Package blobstore stores attachment files on disk under a per-patient,
// per-year/month layout and resolves stored keys back to absolute paths,
// honouring legacy root directories. Files are addressed by a relative
// storage key that the database records alongside the attachment metadata.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrFileNotFound    = errors.New("attachment file not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
	ErrInvalidKey      = errors.New("invalid storage key")
)

// MaxFileSize is the maximum allowed attachment size in bytes (100 MB).
const MaxFileSize = 100 * 1024 * 1024

// StoredFile is the result of writing an attachment.
type StoredFile struct {
	StorageKey string `json:"storage_key"`
	Bytes      int64  `json:"bytes"`
}

// FileStore writes and reads attachment files by storage key.
type FileStore interface {
	Save(ctx context.Context, patientID int64, dateHint string, name string, content io.Reader) (StoredFile, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Resolve(key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ---------------------------------------------------------------------------
// Disk implementation
// ---------------------------------------------------------------------------

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SafeName replaces every character outside [A-Za-z0-9_.-] with "_".
func SafeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// DiskStore keeps files under root. The filesystem is abstracted through afero
// so tests run against memory.
type DiskStore struct {
	fs          afero.Fs
	root        string
	legacyRoots []string
	now         func() time.Time
	suffix      func() string
}

// NewDiskStore returns a store rooted at root. Legacy roots are only consulted
// when resolving or opening existing keys.
func NewDiskStore(fs afero.Fs, root string, legacyRoots ...string) *DiskStore {
	return &DiskStore{
		fs:          fs,
		root:        root,
		legacyRoots: legacyRoots,
		now:         time.Now,
		suffix:      func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] },
	}
}

// NewOSDiskStore is a DiskStore over the operating system filesystem.
func NewOSDiskStore(root string, legacyRoots ...string) *DiskStore {
	return NewDiskStore(afero.NewOsFs(), root, legacyRoots...)
}

// Root returns the primary attachments directory.
func (s *DiskStore) Root() string { return s.root }

// BuildKey returns p_<id>/<yyyy>/<mm>/<yyyymmdd_hhmmss>_<rand8>_<safe name>.
// Year and month come from dateHint (YYYY-MM-DD) when it parses, otherwise
// from at; the timestamp prefix always comes from at.
func BuildKey(patientID int64, dateHint string, name string, at time.Time, suffix string) string {
	folder := at
	if d, err := time.Parse("2006-01-02", strings.TrimSpace(dateHint)); err == nil {
		folder = d
	}
	return fmt.Sprintf("p_%d/%04d/%02d/%s_%s_%s",
		patientID, folder.Year(), int(folder.Month()),
		at.Format("20060102_150405"), suffix, SafeName(name))
}

// Save writes content under a freshly built key. Content larger than
// MaxFileSize is rejected and nothing is left on disk.
func (s *DiskStore) Save(_ context.Context, patientID int64, dateHint string, name string, content io.Reader) (StoredFile, error) {
	if strings.TrimSpace(name) == "" {
		return StoredFile{}, ErrMissingFileName
	}

	key := BuildKey(patientID, dateHint, name, s.now(), s.suffix())
	target := filepath.Join(s.root, filepath.FromSlash(key))

	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return StoredFile{}, fmt.Errorf("create attachment folder: %w", err)
	}

	f, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create attachment file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(content, MaxFileSize+1))
	closeErr := f.Close()
	if err == nil && n > MaxFileSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(target)
		if errors.Is(err, ErrFileTooLarge) {
			return StoredFile{}, err
		}
		return StoredFile{}, fmt.Errorf("write attachment file: %w", err)
	}

	return StoredFile{StorageKey: key, Bytes: n}, nil
}

// Resolve returns the absolute path of key, checking the primary root first
// and then each legacy root in order.
func (s *DiskStore) Resolve(key string) (string, error) {
	p, err := s.locate(key)
	if err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs, nil
	}
	return p, nil
}

func (s *DiskStore) locate(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	for _, root := range append([]string{s.root}, s.legacyRoots...) {
		p := filepath.Join(root, filepath.FromSlash(clean))
		if ok, _ := afero.Exists(s.fs, p); ok {
			return p, nil
		}
	}
	return "", ErrFileNotFound
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.locate(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open attachment file: %w", err)
	}
	return f, nil
}

// Delete removes the file from whichever root holds it.
func (s *DiskStore) Delete(_ context.Context, key string) error {
	p, err := s.locate(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		return fmt.Errorf("remove attachment file: %w", err)
	}
	return nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, `\`, "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
