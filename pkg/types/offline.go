package types

import (
	"encoding/json"
	"time"
)

// OfflineTrack is the metadata stored for one offline record.
type OfflineTrack struct {
	Type         string          `json:"type"`
	Timestamp    int64           `json:"timestamp"`
	MediaItem    json.RawMessage `json:"mediaItem"`
	Bitrate      int             `json:"bitrate"`
	ContainerId  *string         `json:"containerId,omitempty"`
	MediaSources json.RawMessage `json:"mediaSources,omitempty"`
}

type SaveTrackRequest struct {
	Track        OfflineTrack `json:"track"`
	VideoUrl     *string      `json:"videoUrl,omitempty"`
	ThumbnailUrl *string      `json:"thumbnailUrl,omitempty"`
}

type DownloadProgress struct {
	Id            string  `json:"id"`
	Downloaded    int64   `json:"downloaded"`
	Total         int64   `json:"total"`
	Progress      uint32  `json:"progress"`
	Speed         float64 `json:"speed"`
	TimeRemaining float64 `json:"timeRemaining"`
}

type DownloadFinished struct {
	SessionId string    `json:"sessionId"`
	Id        string    `json:"id"`
	Status    string    `json:"status"`
	Bytes     int64     `json:"bytes"`
	Error     *string   `json:"error,omitempty"`
	Finished  time.Time `json:"finished"`
}

type AbortDownloadRequest struct {
	// SessionId restricts the abort to one download session. Empty aborts
	// whatever is active.
	SessionId string `json:"sessionId,omitempty"`
}

type StorageStats struct {
	Usage      int64 `json:"usage"`
	TrackCount int   `json:"trackCount"`
}

type StoragePath struct {
	Path string `json:"path"`
}

type FilePath struct {
	Path *string `json:"path"`
}

type ExistsResponse struct {
	Exists bool `json:"exists"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type DownloadStatus struct {
	Active    bool    `json:"active"`
	Id        *string `json:"id,omitempty"`
	SessionId *string `json:"sessionId,omitempty"`
}

type DownloadHistoryItem struct {
	Id            string     `json:"id"`
	TrackId       string     `json:"trackId"`
	Status        string     `json:"status"`
	Bytes         int64      `json:"bytes"`
	FailureReason *string    `json:"failureReason,omitempty"`
	Started       time.Time  `json:"started"`
	Finished      *time.Time `json:"finished,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Storage  string `json:"storage"`
	RabbitMQ bool   `json:"rabbitmq"`
	MongoDB  bool   `json:"mongodb"`
}
