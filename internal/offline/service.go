package offline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/egfanboy/mediapire-offline/internal/blob"
	"github.com/egfanboy/mediapire-offline/internal/catalog"
	"github.com/egfanboy/mediapire-offline/internal/download"
	"github.com/egfanboy/mediapire-offline/internal/events"
	"github.com/egfanboy/mediapire-offline/internal/history"
	"github.com/egfanboy/mediapire-offline/internal/metrics"
	"github.com/egfanboy/mediapire-offline/internal/thumbnail"
	"github.com/egfanboy/mediapire-offline/internal/utils"
	"github.com/egfanboy/mediapire-offline/pkg/types"
	"github.com/egfanboy/mediapire-offline/pkg/types/pagination"
	"github.com/rs/zerolog/log"
)

// OfflineApi is the offline cache as seen by the controllers. A missing
// record or thumbnail is reported as ErrNotFound, which the controllers turn
// into a 404. GetFilePath is the exception: a track without a media file is a
// nil path, since the route answers with a nullable path either way.
type OfflineApi interface {
	Save(ctx context.Context, id string, request types.SaveTrackRequest) error
	// Get returns ErrNotFound when id is not in the catalog.
	Get(ctx context.Context, id string) (types.OfflineTrack, error)
	Has(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) error
	GetFilePath(ctx context.Context, id string) (*string, error)
	// GetThumbnail returns ErrNotFound when no thumbnail was stored for id.
	GetThumbnail(ctx context.Context, id string) ([]byte, error)
	GetCount(ctx context.Context, kind string) (int, error)
	ClearAll(ctx context.Context) error
	GetPage(ctx context.Context, kind string, pageIndex int, pageSize int) ([]json.RawMessage, error)
	Search(ctx context.Context, term string, limit int) ([]json.RawMessage, error)
	GetStats(ctx context.Context) (types.StorageStats, error)
	AbortDownload(ctx context.Context, sessionId string) error
	StoragePath() (string, error)
	DownloadStatus(ctx context.Context) types.DownloadStatus
	GetDownloads(ctx context.Context, params pagination.ApiPaginationParams) (pagination.PaginatedResponse[types.DownloadHistoryItem], error)
}

type offlineService struct {
	blobs       *blob.Store
	catalog     *catalog.Store
	coordinator *Coordinator
}

func (s *offlineService) Save(ctx context.Context, id string, request types.SaveTrackRequest) error {
	record, err := utils.ConvertStruct[types.OfflineTrack, catalog.Record](request.Track)
	if err != nil {
		return err
	}

	err = s.coordinator.Begin(ctx, SaveRequest{
		Id:           id,
		Record:       record,
		VideoURL:     request.VideoUrl,
		ThumbnailURL: request.ThumbnailUrl,
	})
	if err != nil {
		return err
	}

	s.refreshMetrics(ctx)

	return nil
}

func (s *offlineService) Get(ctx context.Context, id string) (types.OfflineTrack, error) {
	r, ok, err := s.catalog.Get(ctx, id)
	if err != nil {
		return types.OfflineTrack{}, err
	}

	if !ok {
		return types.OfflineTrack{}, ErrNotFound
	}

	return utils.ConvertStruct[catalog.Record, types.OfflineTrack](*r)
}

func (s *offlineService) Has(ctx context.Context, id string) (bool, error) {
	return s.catalog.Contains(ctx, id)
}

func (s *offlineService) Remove(ctx context.Context, id string) error {
	if err := blob.ValidateId(id); err != nil {
		return err
	}

	removed, err := s.catalog.Remove(ctx, id)
	if err != nil {
		return err
	}

	for _, removedId := range removed {
		if err := s.blobs.DeleteAll(removedId); err != nil {
			log.Err(err).Msgf("Failed to delete files of %s", removedId)

			return err
		}
	}

	log.Info().Msgf("Removed %d offline record(s) for %s", len(removed), id)

	s.refreshMetrics(ctx)

	return nil
}

func (s *offlineService) GetFilePath(ctx context.Context, id string) (*string, error) {
	if err := blob.ValidateId(id); err != nil {
		return nil, err
	}

	if !s.blobs.Exists(id, blob.Media) {
		return nil, nil
	}

	p, err := filepath.Abs(s.blobs.Path(id, blob.Media))
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *offlineService) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	b, ok, err := s.blobs.Read(id, blob.Thumbnail)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNotFound
	}

	return b, nil
}

func (s *offlineService) GetCount(ctx context.Context, kind string) (int, error) {
	return s.catalog.CountByType(ctx, kind)
}

func (s *offlineService) ClearAll(ctx context.Context) error {
	log.Info().Msgf("Clearing offline storage at %s", s.blobs.Root())

	if err := s.catalog.Clear(ctx); err != nil {
		return err
	}

	metrics.SetCatalogSize(0, 0)

	return nil
}

func (s *offlineService) GetPage(ctx context.Context, kind string, pageIndex int, pageSize int) ([]json.RawMessage, error) {
	return s.catalog.Page(ctx, kind, pageIndex, pageSize)
}

func (s *offlineService) Search(ctx context.Context, term string, limit int) ([]json.RawMessage, error) {
	return s.catalog.Search(ctx, term, limit)
}

func (s *offlineService) GetStats(ctx context.Context) (types.StorageStats, error) {
	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		return types.StorageStats{}, err
	}

	metrics.SetCatalogSize(stats.TrackCount, stats.Usage)

	return types.StorageStats{Usage: stats.Usage, TrackCount: stats.TrackCount}, nil
}

// AbortDownload cancels the running save, or only the given session when
// sessionId is set. Aborting while idle is not an error.
func (s *offlineService) AbortDownload(ctx context.Context, sessionId string) error {
	var aborted bool
	if sessionId == "" {
		aborted = s.coordinator.Cancel()
	} else {
		aborted = s.coordinator.CancelSession(sessionId)
	}

	if !aborted {
		log.Debug().Msg("No matching download to abort")
	}

	return nil
}

func (s *offlineService) StoragePath() (string, error) {
	return filepath.Abs(s.blobs.Root())
}

func (s *offlineService) DownloadStatus(ctx context.Context) types.DownloadStatus {
	trackId, sessionId, ok := s.coordinator.Active()
	if !ok {
		return types.DownloadStatus{}
	}

	return types.DownloadStatus{Active: true, Id: &trackId, SessionId: &sessionId}
}

func (s *offlineService) GetDownloads(ctx context.Context, params pagination.ApiPaginationParams) (pagination.PaginatedResponse[types.DownloadHistoryItem], error) {
	downloads, err := s.coordinator.History().GetRecent(ctx, 0)
	if err != nil {
		return pagination.PaginatedResponse[types.DownloadHistoryItem]{}, err
	}

	items := make([]types.DownloadHistoryItem, len(downloads))
	for i := range downloads {
		items[i] = downloads[i].ToApiResponse()
	}

	return pagination.NewPaginatedResponse(items, params), nil
}

func (s *offlineService) refreshMetrics(ctx context.Context) {
	stats, err := s.catalog.Stats(context.WithoutCancel(ctx))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to refresh catalog metrics")

		return
	}

	metrics.SetCatalogSize(stats.TrackCount, stats.Usage)
}

func newOfflineService(blobs *blob.Store, coordinator *Coordinator) *offlineService {
	return &offlineService{blobs: blobs, catalog: catalog.NewStore(blobs), coordinator: coordinator}
}

var (
	hub = events.NewHub()

	serviceOnce sync.Once
	service     OfflineApi
)

// EventHub carries the progress and completion events of every save.
func EventHub() *events.Hub {
	return hub
}

// GetService builds the process wide service from the app configuration on
// first use. Configuration and MongoDB must be set up before that.
func GetService() OfflineApi {
	serviceOnce.Do(func() {
		cfg := app.GetApp().Config

		repo, err := history.NewDownloadRepository(context.Background())
		if err != nil {
			log.Err(err).Msg("Failed to create download history repository, keeping history in memory")
			repo = history.NewMemoryRepository()
		}

		var extractor thumbnail.Extractor
		if cfg.Thumbnails.Generate {
			extractor = thumbnail.NewExtractor(cfg.Thumbnails.SeekSeconds)
		}

		blobs := blob.NewStore(cfg.StorageDir)
		engine := download.NewEngine(
			download.WithProgressInterval(cfg.Download.ProgressInterval),
			download.WithChunkSize(cfg.Download.ChunkSize),
		)

		coordinator := NewCoordinator(Dependencies{
			Blobs:             blobs,
			Catalog:           catalog.NewStore(blobs),
			Engine:            engine,
			Hub:               hub,
			History:           repo,
			Extractor:         extractor,
			ThumbnailTimeout:  cfg.Download.ThumbnailTimeout,
			ThumbnailMaxBytes: cfg.Download.ThumbnailMaxBytes,
		})

		service = newOfflineService(blobs, coordinator)

		log.Info().Msgf("Offline storage at %s", cfg.StorageDir)
	})

	return service
}
