package history

import (
	"context"
	"errors"
	"sort"
	"sync"

	mediapireMongo "github.com/egfanboy/mediapire-offline/internal/mongo"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "downloads"
	// kept in memory when no database is configured
	memoryCapacity = 500
)

var ErrNotFound = errors.New("download not found")

type DownloadRepository interface {
	Save(ctx context.Context, d *Download) error
	GetById(ctx context.Context, objectId primitive.ObjectID) (*Download, error)
	// GetRecent returns up to limit downloads, newest first.
	GetRecent(ctx context.Context, limit int) ([]Download, error)
}

type mongoRepo struct {
	collection *mongo.Collection
}

func (r *mongoRepo) Save(ctx context.Context, d *Download) error {
	_, err := r.GetById(ctx, d.Id)

	// Already exists, update it
	if err == nil {
		_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": d.Id}, d)
		return err
	}

	if errors.Is(err, ErrNotFound) {
		_, err := r.collection.InsertOne(ctx, d)
		return err
	}

	return err
}

func (r *mongoRepo) GetById(ctx context.Context, objectId primitive.ObjectID) (*Download, error) {
	d := &Download{}

	err := r.collection.FindOne(ctx, bson.M{"_id": objectId}).Decode(d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return d, nil
}

func (r *mongoRepo) GetRecent(ctx context.Context, limit int) ([]Download, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started", Value: -1}}).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	result := make([]Download, 0)

	err = cursor.All(ctx, &result)

	return result, err
}

type memoryRepo struct {
	mu        sync.Mutex
	downloads map[primitive.ObjectID]Download
}

func (r *memoryRepo) Save(ctx context.Context, d *Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.downloads[d.Id] = *d

	if len(r.downloads) > memoryCapacity {
		r.evictOldest()
	}

	return nil
}

func (r *memoryRepo) evictOldest() {
	var oldest *Download
	for id := range r.downloads {
		d := r.downloads[id]
		if oldest == nil || d.Started.Before(oldest.Started) {
			oldest = &d
		}
	}

	if oldest != nil {
		delete(r.downloads, oldest.Id)
	}
}

func (r *memoryRepo) GetById(ctx context.Context, objectId primitive.ObjectID) (*Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.downloads[objectId]
	if !ok {
		return nil, ErrNotFound
	}

	return &d, nil
}

func (r *memoryRepo) GetRecent(ctx context.Context, limit int) ([]Download, error) {
	r.mu.Lock()
	result := make([]Download, 0, len(r.downloads))
	for _, d := range r.downloads {
		result = append(result, d)
	}
	r.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Started.Equal(result[j].Started) {
			return result[i].Id.Hex() > result[j].Id.Hex()
		}

		return result[i].Started.After(result[j].Started)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func NewMemoryRepository() DownloadRepository {
	return &memoryRepo{downloads: map[primitive.ObjectID]Download{}}
}

// NewDownloadRepository stores history in MongoDB when a client was
// initialized and in memory otherwise.
func NewDownloadRepository(ctx context.Context) (DownloadRepository, error) {
	if !mediapireMongo.IsInitialized() {
		log.Debug().Msg("MongoDB not configured, keeping download history in memory")
		return NewMemoryRepository(), nil
	}

	collection, err := mediapireMongo.NewCollection(collectionName)
	if err != nil {
		return nil, err
	}

	return &mongoRepo{collection: collection}, nil
}
