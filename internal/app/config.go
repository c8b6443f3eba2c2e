package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 9797
	defaultStorageDir       = "./offline_storage"
	defaultProgressInterval = 500 * time.Millisecond
	defaultChunkSize        = 32 * 1024
	defaultThumbnailTimeout = 30 * time.Second
	// thumbnails are kept in memory while fetched
	defaultThumbnailMaxBytes = 10 * 1024 * 1024
)

type DownloadConfig struct {
	ProgressInterval  time.Duration `yaml:"progressInterval"`
	ChunkSize         int           `yaml:"chunkSize"`
	ThumbnailTimeout  time.Duration `yaml:"thumbnailTimeout"`
	ThumbnailMaxBytes int64         `yaml:"thumbnailMaxBytes"`
}

type ThumbnailConfig struct {
	// Generate extracts a frame from the downloaded media when the caller
	// did not provide a thumbnail url. Requires ffmpeg on the PATH.
	Generate    bool    `yaml:"generate"`
	SeekSeconds float64 `yaml:"seekSeconds"`
}

type RabbitConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Exchange string `yaml:"exchange"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type ConsulConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Scheme  string `yaml:"scheme"`
}

type Config struct {
	Name       string          `yaml:"name"`
	Port       int             `yaml:"port"`
	Scheme     string          `yaml:"scheme"`
	StorageDir string          `yaml:"storageDir"`
	LogLevel   string          `yaml:"logLevel"`
	LogPretty  bool            `yaml:"logPretty"`
	Download   DownloadConfig  `yaml:"download"`
	Thumbnails ThumbnailConfig `yaml:"thumbnails"`
	Rabbit     RabbitConfig    `yaml:"rabbit"`
	Mongo      MongoConfig     `yaml:"mongo"`
	Consul     ConsulConfig    `yaml:"consul"`
}

func DefaultConfig() Config {
	return Config{
		Name:       "default",
		Port:       defaultPort,
		Scheme:     "http",
		StorageDir: defaultStorageDir,
		LogLevel:   "info",
		Download: DownloadConfig{
			ProgressInterval:  defaultProgressInterval,
			ChunkSize:         defaultChunkSize,
			ThumbnailTimeout:  defaultThumbnailTimeout,
			ThumbnailMaxBytes: defaultThumbnailMaxBytes,
		},
		Thumbnails: ThumbnailConfig{SeekSeconds: 5},
		Rabbit:     RabbitConfig{Port: 5672, Exchange: "mediapire-exch"},
		Mongo:      MongoConfig{Database: "mediapire-offline"},
		Consul:     ConsulConfig{Address: "localhost", Port: 8500, Scheme: "http"},
	}
}

// LoadConfig reads the yaml file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	err = yaml.Unmarshal(b, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.StorageDir == "" {
		return errors.New("storageDir cannot be empty")
	}

	if c.Port <= 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	if c.Download.ProgressInterval <= 0 {
		return fmt.Errorf("invalid download.progressInterval %s", c.Download.ProgressInterval)
	}

	if c.Download.ChunkSize <= 0 {
		return fmt.Errorf("invalid download.chunkSize %d", c.Download.ChunkSize)
	}

	return nil
}

// ParseConfig parses command line arguments, loads the referenced config
// file and applies flag overrides on top of it.
func ParseConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("mediapire-offline", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to the yaml config file")
	port := fs.Int("port", 0, "Server port to listen on")
	storageDir := fs.String("storage", "", "Directory holding the offline media")
	logLevel := fs.String("log-level", "", "Log level (trace, debug, info, warn, error)")

	err := fs.Parse(args)
	if err != nil {
		return Config{}, err
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return cfg, err
	}

	if *port != 0 {
		cfg.Port = *port
	}

	if *storageDir != "" {
		cfg.StorageDir = *storageDir
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	return cfg, cfg.Validate()
}
