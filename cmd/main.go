package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/egfanboy/mediapire-offline/internal/consul"
	"github.com/egfanboy/mediapire-offline/internal/metrics"
	"github.com/egfanboy/mediapire-offline/internal/mongo"
	"github.com/egfanboy/mediapire-offline/internal/offline"
	"github.com/egfanboy/mediapire-offline/internal/rabbitmq"

	// APIs - start

	_ "github.com/egfanboy/mediapire-offline/internal/health"

	// APIs - end

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var cleanupFuncs []func()

func addCleanupFunc(fn func()) {
	cleanupFuncs = append(cleanupFuncs, fn)
}

func setupLogging(cfg app.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Msgf("Unknown log level %q, defaulting to info", cfg.LogLevel)
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := app.ParseConfig(os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	setupLogging(cfg)

	offlineApp := app.GetApp()
	offlineApp.Configure(cfg)

	log.Info().Msg("Initializing Mediapire Offline")

	if cfg.Rabbit.Enabled {
		err = rabbitmq.Setup(ctx)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to connect to rabbitmq")
			os.Exit(1)
		}

		addCleanupFunc(func() { rabbitmq.Cleanup() })

		offline.StartEventBridge(ctx, offline.EventHub(), rabbitmq.PublishMessage)
	}

	if cfg.Mongo.URI != "" {
		err = mongo.InitMongo(ctx, cfg.Mongo)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to connect to mongoDB")
			os.Exit(1)
		}

		addCleanupFunc(func() { mongo.CleanUpMongo(context.Background()) })
	}

	// built once all backends are up so it picks them up
	offline.GetService()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(c)
		log.Info().Msg("Running cleanup functions")
		// reverse order of registration
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}()

	if cfg.Consul.Enabled {
		err = consul.NewConsulClient()
		if err != nil {
			log.Error().Err(err).Msgf("Failed to connect to consul")
			os.Exit(1)
		}

		err = consul.RegisterService()
		if err != nil {
			log.Error().Err(err).Msgf("Failed to register service to consul")
			os.Exit(1)
		}

		addCleanupFunc(func() { consul.UnregisterService() })

		go consul.KeepRegistered(ctx)
	}

	log.Debug().Msg("starting webserver")

	mainRouter := mux.NewRouter()
	mainRouter.Use(metrics.Middleware)

	mainRouter.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	mainRouter.HandleFunc("/api/v1/offline/events", offline.EventHub().ServeSSE).Methods(http.MethodGet)

	for _, c := range offlineApp.ControllerRegistry.GetControllers() {
		for _, b := range c.GetApis() {
			b.Build(mainRouter)
		}
	}

	srv := &http.Server{
		Addr: fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		// saves stream whole media files before answering and events are
		// long lived, so writes are not bounded
		WriteTimeout: 0,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      mainRouter, // Pass our instance of gorilla/mux in.
	}

	go func() {
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("")
			os.Exit(1)
		}
	}()

	addCleanupFunc(func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()

		// aborts a running save so shutdown does not wait on it
		offline.GetService().AbortDownload(shutdownCtx, "")
		srv.Shutdown(shutdownCtx)
	})

	log.Info().Msgf("Mediapire Offline running on port %d", cfg.Port)

	<-c
}
