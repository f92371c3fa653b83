// Package files manages the directory of user sound files that alarms can
// reference by name.
package files

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chaz8081/bedclock/internal/audio"
)

// MaxFileSize bounds a single uploaded sound file.
const MaxFileSize = 512000

const partSuffix = ".part"

var (
	ErrInvalidName  = errors.New("files: invalid sound file name")
	ErrNotFound     = errors.New("files: sound file not found")
	ErrNoSpace      = errors.New("files: not enough space")
	ErrTooLarge     = errors.New("files: file exceeds size limit")
	ErrNoUpload     = errors.New("files: no upload in progress")
	ErrUploadActive = errors.New("files: upload already in progress")
)

// Info describes one stored sound file.
type Info struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Store is a flat directory of .mp3 and .wav files with a byte quota.
// It is safe for concurrent use.
type Store struct {
	dir   string
	quota int64

	mu     sync.Mutex
	upload *upload
}

type upload struct {
	name    string
	f       *os.File
	written int64
	limit   int64
}

// New opens the sound directory, creating it if needed. A quota of zero
// or less means only the filesystem limits uploads.
func New(dir string, quota int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("files: creating %s: %w", dir, err)
	}
	s := &Store{dir: dir, quota: quota}
	s.removeStaleParts()
	return s, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// ValidateName checks that name is a bare file name with a playable
// extension. Commas are rejected since alarm records are comma separated.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\,`), strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case !audio.IsSupportedFile(name):
		return fmt.Errorf("%w: %q: want one of %s", ErrInvalidName, name, strings.Join(audio.SupportedExtensions, ", "))
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a valid sound file called name is stored.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	fi, err := os.Stat(s.path(name))
	return err == nil && fi.Mode().IsRegular()
}

// Open opens a stored file for reading.
func (s *Store) Open(name string) (io.ReadSeekCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("files: opening %s: %w", name, err)
	}
	return f, nil
}

// Size returns the size of a stored file in bytes.
func (s *Store) Size(name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	fi, err := os.Stat(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("files: stat %s: %w", name, err)
	}
	return fi.Size(), nil
}

// List returns the stored sound files sorted by name.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("files: listing %s: %w", s.dir, err)
	}
	var out []Info
	for _, e := range entries {
		if !e.Type().IsRegular() || ValidateName(e.Name()) != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{Name: e.Name(), Size: fi.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Used returns the total size of stored sound files.
func (s *Store) Used() (int64, error) {
	list, err := s.List()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, fi := range list {
		n += fi.Size
	}
	return n, nil
}

// FreeSpace returns how many bytes a new upload may use: the smaller of
// the remaining quota and the free space on the filesystem.
func (s *Store) FreeSpace() (int64, error) {
	disk, err := diskFree(s.dir)
	if err != nil {
		return 0, fmt.Errorf("files: free space: %w", err)
	}
	if s.quota <= 0 {
		return disk, nil
	}
	used, err := s.Used()
	if err != nil {
		return 0, err
	}
	return max(0, min(disk, s.quota-used)), nil
}

// TotalSpace returns the quota, or the filesystem size when no quota is set.
func (s *Store) TotalSpace() (int64, error) {
	if s.quota > 0 {
		return s.quota, nil
	}
	total, err := diskTotal(s.dir)
	if err != nil {
		return 0, fmt.Errorf("files: total space: %w", err)
	}
	return total, nil
}

// Remove deletes a stored file.
func (s *Store) Remove(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("files: removing %s: %w", name, err)
	}
	return nil
}

// Add copies r into a new file called name, replacing any existing file.
func (s *Store) Add(name string, r io.Reader) (int64, error) {
	if err := s.Create(name); err != nil {
		return 0, err
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := s.WriteChunk(buf[:n]); werr != nil {
				s.Abort()
				return 0, werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.Abort()
			return 0, fmt.Errorf("files: reading %s: %w", name, err)
		}
	}
	return s.Commit()
}

// Create starts a chunked upload of name. The data is written to a hidden
// partial file that only becomes visible on Commit.
func (s *Store) Create(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upload != nil {
		return fmt.Errorf("%w: %s", ErrUploadActive, s.upload.name)
	}

	free, err := s.FreeSpace()
	if err != nil {
		return err
	}
	// An overwritten file gives its space back.
	if old, err := os.Stat(s.path(name)); err == nil {
		free += old.Size()
	}
	limit := min(free, MaxFileSize)
	if limit <= 0 {
		return ErrNoSpace
	}

	f, err := os.OpenFile(s.partPath(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("files: creating %s: %w", name, err)
	}
	s.upload = &upload{name: name, f: f, limit: limit}
	slog.Info("[FILES] upload started", "name", name, "limit", limit)
	return nil
}

func (s *Store) partPath(name string) string {
	return filepath.Join(s.dir, "."+name+partSuffix)
}

// WriteChunk appends data to the upload in progress. Exceeding the space
// available when the upload was created aborts it.
func (s *Store) WriteChunk(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.upload
	if u == nil {
		return ErrNoUpload
	}
	if u.written+int64(len(data)) > u.limit {
		s.abortLocked()
		if u.limit == MaxFileSize {
			return fmt.Errorf("%w: %s over %d bytes", ErrTooLarge, u.name, MaxFileSize)
		}
		return fmt.Errorf("%w: %s", ErrNoSpace, u.name)
	}
	n, err := u.f.Write(data)
	u.written += int64(n)
	if err != nil {
		s.abortLocked()
		return fmt.Errorf("files: writing %s: %w", u.name, err)
	}
	return nil
}

// Commit finishes the upload and makes the file visible under its name.
func (s *Store) Commit() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.upload
	if u == nil {
		return 0, ErrNoUpload
	}
	s.upload = nil
	if err := u.f.Close(); err != nil {
		os.Remove(u.f.Name())
		return 0, fmt.Errorf("files: closing %s: %w", u.name, err)
	}
	if err := os.Rename(u.f.Name(), s.path(u.name)); err != nil {
		os.Remove(u.f.Name())
		return 0, fmt.Errorf("files: saving %s: %w", u.name, err)
	}
	slog.Info("[FILES] upload complete", "name", u.name, "bytes", u.written)
	return u.written, nil
}

// Abort discards the upload in progress, if any.
func (s *Store) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()
}

func (s *Store) abortLocked() {
	u := s.upload
	if u == nil {
		return
	}
	s.upload = nil
	u.f.Close()
	os.Remove(u.f.Name())
	slog.Warn("[FILES] upload aborted", "name", u.name, "bytes", u.written)
}

// Uploading returns the name of the upload in progress, or "".
func (s *Store) Uploading() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upload == nil {
		return ""
	}
	return s.upload.name
}

func (s *Store) removeStaleParts() {
	matches, _ := filepath.Glob(filepath.Join(s.dir, ".*"+partSuffix))
	for _, m := range matches {
		os.Remove(m)
	}
}

// ReadAll returns the whole content of a stored file.
func (s *Store) ReadAll(name string) ([]byte, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("files: reading %s: %w", name, err)
	}
	return data, nil
}
