package catalog

import (
	"bytes"
	"encoding/json"
)

type Kind string

const (
	KindVideo     Kind = "video"
	KindContainer Kind = "container"
)

const (
	fieldType         = "Type"
	fieldName         = "Name"
	fieldMediaSources = "MediaSources"
	fieldHasThumbnail = "hasThumbnail"
)

// MediaItem is the client's media descriptor. Only Type and Name are read by
// the store, every other field is carried through untouched. A record
// without one keeps a null descriptor and matches no filter.
type MediaItem struct {
	Type string
	Name string

	raw      json.RawMessage
	isObject bool
	hasType  bool
	hasName  bool
}

func (m MediaItem) MarshalJSON() ([]byte, error) {
	if len(m.raw) == 0 {
		return []byte("null"), nil
	}

	return m.raw, nil
}

func (m *MediaItem) UnmarshalJSON(data []byte) error {
	m.raw = append(m.raw[:0], data...)
	m.Type, m.Name = "", ""
	m.isObject, m.hasType, m.hasName = false, false, false

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		// not an object, kept verbatim
		return nil
	}

	m.isObject = true
	m.Type, m.hasType = stringField(fields, fieldType)
	m.Name, m.hasName = stringField(fields, fieldName)

	return nil
}

// IsObject reports whether the descriptor is a JSON object. Only objects
// take part in Type and Name matching.
func (m MediaItem) IsObject() bool {
	return m.isObject
}

// HasType reports whether the descriptor carries a string Type field.
func (m MediaItem) HasType() bool {
	return m.hasType
}

// HasName reports whether the descriptor carries a string Name field.
func (m MediaItem) HasName() bool {
	return m.hasName
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return "", false
	}

	return s, true
}

type Record struct {
	Kind         Kind            `json:"type"`
	Timestamp    int64           `json:"timestamp"`
	MediaItem    MediaItem       `json:"mediaItem"`
	Bitrate      int             `json:"bitrate"`
	ContainerId  *string         `json:"containerId,omitempty"`
	MediaSources json.RawMessage `json:"mediaSources,omitempty"`
}

func (r Record) hasMediaSources() bool {
	trimmed := bytes.TrimSpace(r.MediaSources)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func (r Record) isChildOf(containerId string) bool {
	return r.ContainerId != nil && *r.ContainerId == containerId
}

// Document is the whole persisted catalog.
type Document struct {
	Tracks map[string]Record `json:"tracks"`
}

func NewDocument() *Document {
	return &Document{Tracks: map[string]Record{}}
}

// Descriptor is the media item handed back to clients, extended with the
// record's media sources and a hasThumbnail flag.
type Descriptor = json.RawMessage

func describe(r Record, hasThumbnail bool) (Descriptor, error) {
	raw, err := r.MediaItem.MarshalJSON()
	if err != nil {
		return nil, err
	}

	if !r.MediaItem.IsObject() {
		return raw, nil
	}

	addSources := r.hasMediaSources()
	if !addSources && !hasThumbnail {
		return raw, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	if addSources {
		fields[fieldMediaSources] = r.MediaSources
	}

	if hasThumbnail {
		fields[fieldHasThumbnail] = json.RawMessage("true")
	}

	return json.Marshal(fields)
}
