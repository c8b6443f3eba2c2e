package offline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/egfanboy/mediapire-offline/internal/blob"
	"github.com/egfanboy/mediapire-offline/internal/catalog"
	"github.com/egfanboy/mediapire-offline/internal/download"
	"github.com/egfanboy/mediapire-offline/internal/events"
	"github.com/egfanboy/mediapire-offline/internal/history"
	"github.com/egfanboy/mediapire-offline/internal/metrics"
	"github.com/egfanboy/mediapire-offline/internal/thumbnail"
	"github.com/egfanboy/mediapire-offline/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultThumbnailTimeout  = 30 * time.Second
	defaultThumbnailMaxBytes = 10 * 1024 * 1024
)

var ErrAlreadyInProgress = errors.New("a download is already in progress")

// SaveRequest is one record to persist along with the resources to fetch for
// it. Both urls are optional.
type SaveRequest struct {
	Id           string
	Record       catalog.Record
	VideoURL     *string
	ThumbnailURL *string
}

type session struct {
	id      string
	trackId string
	ctx     context.Context
	cancel  context.CancelFunc
}

type Dependencies struct {
	Blobs   *blob.Store
	Catalog *catalog.Store
	Engine  *download.Engine
	Hub     *events.Hub
	History history.DownloadRepository
	// Extractor generates a thumbnail from the downloaded media when the
	// request has no thumbnail url. Nil disables generation.
	Extractor thumbnail.Extractor

	ThumbnailTimeout  time.Duration
	ThumbnailMaxBytes int64
}

// Coordinator runs at most one save at a time and owns the handle used to
// abort it.
type Coordinator struct {
	mu     sync.Mutex
	active *session

	blobs     *blob.Store
	catalog   *catalog.Store
	engine    *download.Engine
	hub       *events.Hub
	history   history.DownloadRepository
	extractor thumbnail.Extractor

	thumbnailTimeout  time.Duration
	thumbnailMaxBytes int64
}

func NewCoordinator(d Dependencies) *Coordinator {
	c := &Coordinator{
		blobs:             d.Blobs,
		catalog:           d.Catalog,
		engine:            d.Engine,
		hub:               d.Hub,
		history:           d.History,
		extractor:         d.Extractor,
		thumbnailTimeout:  d.ThumbnailTimeout,
		thumbnailMaxBytes: d.ThumbnailMaxBytes,
	}

	if c.engine == nil {
		c.engine = download.NewEngine()
	}

	if c.hub == nil {
		c.hub = events.NewHub()
	}

	if c.history == nil {
		c.history = history.NewMemoryRepository()
	}

	if c.thumbnailTimeout <= 0 {
		c.thumbnailTimeout = defaultThumbnailTimeout
	}

	if c.thumbnailMaxBytes <= 0 {
		c.thumbnailMaxBytes = defaultThumbnailMaxBytes
	}

	return c
}

func (c *Coordinator) acquire(ctx context.Context, trackId string) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyInProgress
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &session{id: uuid.NewString(), trackId: trackId, ctx: sessionCtx, cancel: cancel}
	c.active = s

	metrics.SetDownloadActive(true)

	return s, nil
}

// release frees the slot only while it still holds s. A session that was
// cancelled and replaced must not clear its successor.
func (c *Coordinator) release(s *session) {
	s.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == s {
		c.active = nil
		metrics.SetDownloadActive(false)
	}
}

// Begin downloads the media and thumbnail of the request and commits the
// record. It returns ErrAlreadyInProgress without side effects when another
// save is running.
func (c *Coordinator) Begin(ctx context.Context, req SaveRequest) error {
	if err := blob.ValidateId(req.Id); err != nil {
		return err
	}

	s, err := c.acquire(ctx, req.Id)
	if err != nil {
		log.Warn().Msgf("Rejecting save of %s, a download is already in progress", req.Id)
		metrics.RecordDownload(metrics.OutcomeRejected, 0, 0)

		return err
	}
	defer c.release(s)

	log.Info().Msgf("Starting save of %s in session %s", req.Id, s.id)

	started := time.Now()
	record := history.NewDownloadModel(s.id, req.Id)
	c.saveHistory(ctx, record)

	n, err := c.run(s, req, record)

	c.finish(ctx, s, record, n, err, time.Since(started))

	return err
}

func (c *Coordinator) run(s *session, req SaveRequest, record *history.Download) (int64, error) {
	record.SetInProgress()
	c.saveHistory(s.ctx, record)

	var downloaded int64

	if req.VideoURL != nil {
		dst, _, err := c.blobs.Create(req.Id, blob.Media)
		if err != nil {
			return 0, err
		}

		downloaded, err = c.engine.Fetch(s.ctx, *req.VideoURL, dst, req.Id, c.publishProgress)
		if err != nil {
			return downloaded, err
		}

		if _, err := c.blobs.Commit(dst.Name(), req.Id, blob.Media); err != nil {
			os.Remove(dst.Name())

			return downloaded, err
		}
	}

	c.saveThumbnail(s.ctx, req)

	// the record is committed even if an abort arrives after the media landed
	err := c.catalog.Put(context.WithoutCancel(s.ctx), req.Id, req.Record)
	if err != nil {
		if catalog.IsIOError(err) {
			return downloaded, err
		}

		return downloaded, &catalog.IOError{Op: "commit", Path: c.catalog.Path(), Err: err}
	}

	return downloaded, nil
}

func (c *Coordinator) publishProgress(p download.Progress) {
	c.hub.Publish(events.TypeProgress, types.DownloadProgress{
		Id:            p.Id,
		Downloaded:    p.Downloaded,
		Total:         p.Total,
		Progress:      p.Percent,
		Speed:         p.Speed,
		TimeRemaining: p.TimeRemaining,
	})
}

// saveThumbnail is best effort and ignores cancellation of the session.
func (c *Coordinator) saveThumbnail(ctx context.Context, req SaveRequest) {
	thumbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.thumbnailTimeout)
	defer cancel()

	var (
		b   []byte
		err error
	)

	switch {
	case req.ThumbnailURL != nil:
		b, err = c.engine.FetchBytes(thumbCtx, *req.ThumbnailURL, c.thumbnailMaxBytes)
	case c.extractor != nil && c.blobs.Exists(req.Id, blob.Media):
		b, err = c.extractor.Extract(thumbCtx, c.blobs.Path(req.Id, blob.Media))
	default:
		return
	}

	if err != nil {
		log.Warn().Err(err).Msgf("Saving %s without a thumbnail", req.Id)

		return
	}

	if _, err := c.blobs.Write(req.Id, blob.Thumbnail, bytes.NewReader(b)); err != nil {
		log.Warn().Err(err).Msgf("Failed to store thumbnail of %s", req.Id)
	}
}

func (c *Coordinator) finish(ctx context.Context, s *session, record *history.Download, n int64, err error, elapsed time.Duration) {
	outcome := metrics.OutcomeComplete

	switch {
	case err == nil:
		record.SetComplete(n)
		log.Info().Msgf("Saved %s (%d bytes) in %s", s.trackId, n, elapsed)
	case errors.Is(err, download.ErrCancelled):
		outcome = metrics.OutcomeCancelled
		record.SetCancelled()
		log.Info().Msgf("Save of %s was cancelled", s.trackId)
	default:
		outcome = metrics.OutcomeFailed
		record.SetFailed(err.Error())
		log.Err(err).Msgf("Failed to save %s", s.trackId)
	}

	c.saveHistory(ctx, record)
	metrics.RecordDownload(outcome, n, elapsed)

	evt := types.DownloadFinished{
		SessionId: s.id,
		Id:        s.trackId,
		Status:    string(record.Status),
		Bytes:     n,
		Finished:  *record.Finished,
	}

	if err != nil {
		msg := err.Error()
		evt.Error = &msg
	}

	c.hub.Publish(events.TypeFinished, evt)
}

func (c *Coordinator) saveHistory(ctx context.Context, record *history.Download) {
	err := c.history.Save(context.WithoutCancel(ctx), record)
	if err != nil {
		log.Err(err).Msgf("Failed to record download %s of %s", record.Id.Hex(), record.TrackId)
	}
}

// Cancel aborts the active save and frees the slot right away. It reports
// whether anything was running.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cancelLocked()
}

// CancelSession aborts the active save only if it belongs to sessionId.
func (c *Coordinator) CancelSession(sessionId string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.id != sessionId {
		return false
	}

	return c.cancelLocked()
}

func (c *Coordinator) cancelLocked() bool {
	if c.active == nil {
		return false
	}

	log.Info().Msgf("Aborting save of %s in session %s", c.active.trackId, c.active.id)

	c.active.cancel()
	c.active = nil
	metrics.SetDownloadActive(false)

	return true
}

// Active returns the record and session of the running save.
func (c *Coordinator) Active() (trackId string, sessionId string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return "", "", false
	}

	return c.active.trackId, c.active.id, true
}

func (c *Coordinator) History() history.DownloadRepository {
	return c.history
}
