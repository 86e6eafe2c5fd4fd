// Package userdata reads and writes files inside the per-user data directory.
package userdata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zjrosen/erwt/internal/log"
)

var (
	// ErrNoDir is returned by New when no directory is given.
	ErrNoDir = errors.New("userdata: directory is undefined")

	// ErrOutsideDir is returned for names that resolve outside the directory.
	ErrOutsideDir = errors.New("userdata: path escapes the user data directory")
)

// Store is a handle on one user data directory. Writes are atomic, and Write
// and Append are serialized per Store.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates dir if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrNoDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating user data dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute user data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path joins name onto the directory, rejecting names that escape it.
func (s *Store) Path(name string) (string, error) {
	p := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDir, name)
	}
	return p, nil
}

// Write replaces name with data, trimmed of surrounding whitespace.
func (s *Store) Write(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(name, data)
}

// write is Write without the lock. Caller holds mu.
func (s *Store) write(name, data string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return writeAtomic(path, strings.TrimSpace(data))
}

// Read returns the content of name.
func (s *Store) Read(name string) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is confined to the data dir
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}

// Delete removes name.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name exists. Names outside the directory never exist.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Append writes the existing content, a newline, then data. A missing file is
// simply written.
func (s *Store) Append(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := s.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return s.write(name, data)
	}
	if err != nil {
		return err
	}
	return s.write(name, content+"\n"+data)
}

// writeAtomic writes data to a temp file in the same directory and renames it
// over path.
func writeAtomic(path, data string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.WriteString(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	log.Debug(log.CatFile, "Wrote file", "path", path, "bytes", len(data))
	return nil
}
