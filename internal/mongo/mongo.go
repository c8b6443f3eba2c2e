package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/egfanboy/mediapire-offline/internal/app"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var mongoClient *mongo.Client

var offlineDB *mongo.Database

var (
	errNoClientError = errors.New("mongo client was never initialized")
)

func InitMongo(ctx context.Context, cfg app.MongoConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return err
	}

	// Connect is lazy, make sure the server is reachable before serving
	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		client.Disconnect(context.Background())
		return err
	}

	mongoClient = client
	offlineDB = mongoClient.Database(cfg.Database)

	return nil
}

func IsInitialized() bool {
	return mongoClient != nil
}

func CleanUpMongo(ctx context.Context) error {
	if mongoClient == nil {
		return errors.New("cannot disconnect from mongo since it was never initialized")
	}

	err := mongoClient.Disconnect(ctx)
	mongoClient = nil
	offlineDB = nil

	return err
}

func NewCollection(collection string) (*mongo.Collection, error) {
	if mongoClient == nil || offlineDB == nil {
		return nil, errNoClientError
	}

	return offlineDB.Collection(collection), nil
}
