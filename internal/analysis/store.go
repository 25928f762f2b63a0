package analysis

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxLocalBytes caps how much of a local file is read.
const maxLocalBytes = 10 << 20

var (
	// ErrOutsideRoot is returned for a local path that resolves outside the
	// document root.
	ErrOutsideRoot = errors.New("document path outside document root")
	// ErrLocalDisabled is returned when a file locator reaches an analyzer
	// that has no document root.
	ErrLocalDisabled = errors.New("local documents are not enabled")
)

// LocalStore reads documents beneath a single directory. Paths that
// escape the directory, through "..", absolute paths or symlinks, are
// refused.
type LocalStore struct {
	dir  string
	root *os.Root
}

// OpenLocalStore opens dir as a document root, creating it if needed.
func OpenLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty document root", ErrLocalDisabled)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create document root: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open document root: %w", err)
	}
	return &LocalStore{dir: abs, root: root}, nil
}

// Dir returns the absolute document root.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Close releases the root handle.
func (s *LocalStore) Close() error {
	return s.root.Close()
}

// Read returns the content of a regular file beneath the root. An
// absolute path is accepted only when it lies inside the root.
func (s *LocalStore) Read(path string) ([]byte, error) {
	rel, err := s.relative(path)
	if err != nil {
		return nil, err
	}

	f, err := s.root.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("document %s is not a regular file", path)
	}
	if info.Size() > maxLocalBytes {
		return nil, fmt.Errorf("document %s exceeds %d bytes", path, maxLocalBytes)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxLocalBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if len(data) > maxLocalBytes {
		return nil, fmt.Errorf("document %s exceeds %d bytes", path, maxLocalBytes)
	}
	return data, nil
}

func (s *LocalStore) relative(path string) (string, error) {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		return clean, nil
	}
	rel, err := filepath.Rel(s.dir, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return rel, nil
}

func readLocal(store *LocalStore, path string) ([]byte, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: %s", ErrLocalDisabled, path)
	}
	return store.Read(path)
}
