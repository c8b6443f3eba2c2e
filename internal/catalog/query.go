package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/egfanboy/mediapire-offline/internal/blob"
)

type Stats struct {
	Usage      int64
	TrackCount int
}

type entry struct {
	id     string
	record Record
}

// sortedEntries returns the records in ascending id order so that scans do
// not depend on map iteration.
func sortedEntries(doc *Document) []entry {
	entries := make([]entry, 0, len(doc.Tracks))
	for id, r := range doc.Tracks {
		entries = append(entries, entry{id: id, record: r})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].id < entries[j].id
	})

	return entries
}

func matchesType(r Record, itemType string) bool {
	return r.MediaItem.HasType() && r.MediaItem.Type == itemType
}

func (s *Store) CountByType(ctx context.Context, itemType string) (int, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range doc.Tracks {
		if matchesType(r, itemType) {
			count++
		}
	}

	return count, nil
}

// Page returns the descriptors of the given media type, newest first, sliced
// to [pageIndex*pageSize, pageIndex*pageSize+pageSize). Pages outside the
// result set are empty.
func (s *Store) Page(ctx context.Context, itemType string, pageIndex, pageSize int) ([]Descriptor, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Descriptor, 0)

	if pageIndex < 0 || pageSize <= 0 {
		return result, nil
	}

	filtered := make([]entry, 0)
	for _, e := range sortedEntries(doc) {
		if matchesType(e.record, itemType) {
			filtered = append(filtered, e)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].record.Timestamp > filtered[j].record.Timestamp
	})

	// checked before multiplying so huge indexes cannot overflow
	if pageIndex > len(filtered)/pageSize {
		return result, nil
	}

	start := pageIndex * pageSize
	if start >= len(filtered) {
		return result, nil
	}

	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	for _, e := range filtered[start:end] {
		d, err := s.describe(e)
		if err != nil {
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

// Search matches term against descriptor names, ignoring case. A blank term
// matches nothing.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]Descriptor, error) {
	result := make([]Descriptor, 0)

	if strings.TrimSpace(term) == "" || limit <= 0 {
		return result, nil
	}

	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)

	for _, e := range sortedEntries(doc) {
		if len(result) >= limit {
			break
		}

		if !e.record.MediaItem.HasName() {
			continue
		}

		if !strings.Contains(strings.ToLower(e.record.MediaItem.Name), needle) {
			continue
		}

		d, err := s.describe(e)
		if err != nil {
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

func (s *Store) describe(e entry) (Descriptor, error) {
	return describe(e.record, s.blobs.Exists(e.id, blob.Thumbnail))
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return Stats{}, err
	}

	usage, err := s.blobs.Usage()
	if err != nil {
		return Stats{}, err
	}

	return Stats{Usage: usage, TrackCount: len(doc.Tracks)}, nil
}
