package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/egfanboy/mediapire-offline/internal/blob"
	"github.com/rs/zerolog/log"
)

const MetadataFileName = "metadata.json"

// Store persists the catalog as a single JSON document next to the blobs.
// Nothing is cached: every call loads the document from disk and every
// mutation writes it back whole.
type Store struct {
	path  string
	blobs *blob.Store
}

func NewStore(blobs *blob.Store) *Store {
	return &Store{path: filepath.Join(blobs.Root(), MetadataFileName), blobs: blobs}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing file is an empty catalog.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDocument(), nil
		}

		return nil, &IOError{Op: "read", Path: s.path, Err: err}
	}

	doc := &Document{}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, s.path, err)
	}

	if doc.Tracks == nil {
		doc.Tracks = map[string]Record{}
	}

	return doc, nil
}

// Save replaces the document on disk through a temp file and a rename. A
// crash between the two leaves the previous document and a stray temp file.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return &IOError{Op: "encode", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+MetadataFileName+".tmp-*")
	if err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "write", Path: s.path, Err: err}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Op: "sync", Path: s.path, Err: err}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "write", Path: s.path, Err: err}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "replace", Path: s.path, Err: err}
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, bool, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, false, err
	}

	r, ok := doc.Tracks[id]
	if !ok {
		return nil, false, nil
	}

	return &r, true, nil
}

func (s *Store) Contains(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.Get(ctx, id)

	return ok, err
}

// Put inserts or replaces the record stored under id.
func (s *Store) Put(ctx context.Context, id string, r Record) error {
	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}

	doc.Tracks[id] = r

	return s.Save(ctx, doc)
}

// Remove deletes the record. Removing a container also removes the records
// whose containerId points at it, one level deep. The returned ids are every
// id whose files should be deleted, id itself first.
func (s *Store) Remove(ctx context.Context, id string) ([]string, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	removed := []string{id}

	r, ok := doc.Tracks[id]
	if !ok {
		return removed, nil
	}

	if r.Kind == KindContainer {
		children := make([]string, 0)
		for childId, child := range doc.Tracks {
			if childId != id && child.isChildOf(id) {
				children = append(children, childId)
			}
		}

		sort.Strings(children)

		for _, childId := range children {
			delete(doc.Tracks, childId)
		}

		removed = append(removed, children...)

		log.Debug().Msgf("Removing container %s with %d children", id, len(children))
	}

	delete(doc.Tracks, id)

	return removed, s.Save(ctx, doc)
}

// Clear drops the whole storage area, blobs and document included.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.blobs.Clear()
}
