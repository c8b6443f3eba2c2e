package history

import (
	"time"

	"github.com/egfanboy/mediapire-offline/pkg/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DownloadStatus string

const (
	StatusPending    DownloadStatus = "pending"
	StatusInProgress DownloadStatus = "in_progress"
	StatusComplete   DownloadStatus = "complete"
	StatusFailed     DownloadStatus = "failed"
	StatusCancelled  DownloadStatus = "cancelled"
)

// Download is one save attempt of a record.
type Download struct {
	Id            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionId     string             `json:"sessionId" bson:"session_id"`
	TrackId       string             `json:"trackId" bson:"track_id"`
	Status        DownloadStatus     `json:"status" bson:"status"`
	Bytes         int64              `json:"bytes" bson:"bytes"`
	FailureReason string             `json:"failureReason" bson:"failure_reason"`
	Started       time.Time          `json:"started" bson:"started"`
	Finished      *time.Time         `json:"finished" bson:"finished,omitempty"`
}

func (d *Download) ToApiResponse() types.DownloadHistoryItem {
	r := types.DownloadHistoryItem{
		Id:       d.Id.Hex(),
		TrackId:  d.TrackId,
		Status:   string(d.Status),
		Bytes:    d.Bytes,
		Started:  d.Started,
		Finished: d.Finished,
	}

	if d.FailureReason != "" {
		reason := d.FailureReason
		r.FailureReason = &reason
	}

	return r
}

func (d *Download) DidFail() bool {
	return d.Status == StatusFailed
}

func (d *Download) IsDone() bool {
	return d.Status == StatusComplete || d.Status == StatusFailed || d.Status == StatusCancelled
}

func (d *Download) SetInProgress() {
	d.Status = StatusInProgress
}

func (d *Download) SetComplete(bytes int64) {
	d.Status = StatusComplete
	d.Bytes = bytes
	d.finish()
}

func (d *Download) SetFailed(failureReason string) {
	d.Status = StatusFailed
	d.FailureReason = failureReason
	d.finish()
}

func (d *Download) SetCancelled() {
	d.Status = StatusCancelled
	d.finish()
}

func (d *Download) finish() {
	now := time.Now().UTC()
	d.Finished = &now
}

func NewDownloadModel(sessionId string, trackId string) *Download {
	return &Download{
		Id:        primitive.NewObjectID(),
		SessionId: sessionId,
		TrackId:   trackId,
		Status:    StatusPending,
		Started:   time.Now().UTC(),
	}
}
