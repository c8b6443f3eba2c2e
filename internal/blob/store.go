package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Kind int

const (
	Media Kind = iota
	Thumbnail
)

func (k Kind) extension() string {
	if k == Thumbnail {
		return ".thumb"
	}

	return ".blob"
}

func (k Kind) String() string {
	if k == Thumbnail {
		return "thumbnail"
	}

	return "media"
}

var ErrInvalidId = errors.New("invalid record id")

// ValidateId rejects ids that cannot be used as a plain file name under the
// storage root.
func ValidateId(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidId, id)
	}

	return nil
}

// Store keeps one media file and one optional thumbnail file per record id,
// flat under a single root directory.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) ensureRoot() error {
	err := os.MkdirAll(s.root, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", s.root, err)
	}

	return nil
}

func (s *Store) Path(id string, kind Kind) string {
	return filepath.Join(s.root, id+kind.extension())
}

// Create opens a staging file for streaming the content of id. The content
// becomes visible under the returned path once Commit is called with the
// staging file name. Concurrent writers of the same id never share a file.
func (s *Store) Create(id string, kind Kind) (*os.File, string, error) {
	if err := ValidateId(id); err != nil {
		return nil, "", err
	}

	if err := s.ensureRoot(); err != nil {
		return nil, "", err
	}

	f, err := os.CreateTemp(s.root, "."+id+kind.extension()+".part-*")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s file for %s: %w", kind, id, err)
	}

	return f, s.Path(id, kind), nil
}

// Commit moves a staging file created by Create over the file of id.
func (s *Store) Commit(stagingPath string, id string, kind Kind) (string, error) {
	if err := ValidateId(id); err != nil {
		return "", err
	}

	if filepath.Dir(stagingPath) != filepath.Clean(s.root) {
		return "", fmt.Errorf("staging file %s is outside of %s", stagingPath, s.root)
	}

	p := s.Path(id, kind)
	if err := os.Rename(stagingPath, p); err != nil {
		return "", fmt.Errorf("failed to commit %s file for %s: %w", kind, id, err)
	}

	return p, nil
}

// Write stores the whole payload of r. Readers never observe a partially
// written file: content goes to a temp file in the root and is renamed over
// the destination.
func (s *Store) Write(id string, kind Kind, r io.Reader) (string, error) {
	if err := ValidateId(id); err != nil {
		return "", err
	}

	if err := s.ensureRoot(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, "."+id+kind.extension()+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", id, err)
	}

	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("failed to write %s file for %s: %w", kind, id, err)
	}

	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync %s file for %s: %w", kind, id, err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s file for %s: %w", kind, id, err)
	}

	p := s.Path(id, kind)
	if err := os.Rename(tmpPath, p); err != nil {
		return "", fmt.Errorf("failed to commit %s file for %s: %w", kind, id, err)
	}

	committed = true

	return p, nil
}

// Read returns the file content of id. A missing file is reported through the
// boolean, not as an error.
func (s *Store) Read(id string, kind Kind) ([]byte, bool, error) {
	if err := ValidateId(id); err != nil {
		return nil, false, err
	}

	b, err := os.ReadFile(s.Path(id, kind))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read %s file for %s: %w", kind, id, err)
	}

	return b, true, nil
}

// Delete removes the file of id. Deleting a missing file is a no-op.
func (s *Store) Delete(id string, kind Kind) error {
	if err := ValidateId(id); err != nil {
		return err
	}

	err := os.Remove(s.Path(id, kind))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s file for %s: %w", kind, id, err)
	}

	return nil
}

// DeleteAll removes both files of id.
func (s *Store) DeleteAll(id string) error {
	for _, k := range []Kind{Media, Thumbnail} {
		if err := s.Delete(id, k); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) Exists(id string, kind Kind) bool {
	if ValidateId(id) != nil {
		return false
	}

	info, err := os.Stat(s.Path(id, kind))

	return err == nil && info.Mode().IsRegular()
}

// Usage sums the size of every regular file directly under the root,
// whether or not a record references it.
func (s *Store) Usage() (int64, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to list storage directory %s: %w", s.root, err)
	}

	var total int64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// removed between listing and stat
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return 0, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}

		total += info.Size()
	}

	return total, nil
}

// Clear removes the root with everything in it and recreates it empty.
func (s *Store) Clear() error {
	err := os.RemoveAll(s.root)
	if err != nil {
		return fmt.Errorf("failed to clear storage directory %s: %w", s.root, err)
	}

	return s.ensureRoot()
}
