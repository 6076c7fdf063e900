package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

const (
	StorageBackendFile  = "file"
	StorageBackendMongo = "mongo"
)

type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
	Posts   PostsConfig   `yaml:"posts"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Cache   CacheConfig   `yaml:"cache"`
	Events  EventsConfig  `yaml:"events"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig selects where post records and locally stored images live.
type StorageConfig struct {
	// Backend is "file" (flat JSON document) or "mongo".
	Backend string `yaml:"backend"`
	// DataFile is the JSON document every write goes to.
	DataFile string `yaml:"data_file"`
	// SeedFile is read instead of DataFile until DataFile exists.
	SeedFile       string `yaml:"seed_file"`
	FilesDir       string `yaml:"files_dir"`
	FilesURLPrefix string `yaml:"files_url_prefix"`
	// ReadOnly marks hosts whose disk cannot hold uploads (serverless deployments).
	ReadOnly bool `yaml:"read_only"`
}

// UploadConfig configures image ingestion and the UploadThing backend.
// The remote backend is active only when APIKey is set.
type UploadConfig struct {
	MaxImageBytes int64         `yaml:"max_image_bytes"`
	BaseURL       string        `yaml:"uploadthing_url"`
	Version       string        `yaml:"uploadthing_version"`
	Route         string        `yaml:"uploadthing_route"`
	Timeout       time.Duration `yaml:"timeout"`
	APIKey        string        `yaml:"-"`
	AppID         string        `yaml:"-"`
}

type PostsConfig struct {
	// Empty lists disable validation of the corresponding field.
	Statuses        []string `yaml:"statuses"`
	PublishStatuses []string `yaml:"publish_statuses"`
	// Timezone used for sharingTime / sharingHour; empty means the host zone.
	Timezone string `yaml:"timezone"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type EventsConfig struct {
	Brokers        string        `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

var config *AppConfig

// Default returns the configuration used when no config.yaml is present.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:         ":3001",
			MaxBodyBytes: 64 << 20,
		},
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{
			Backend:        StorageBackendFile,
			DataFile:       "mock.data.production.json",
			FilesDir:       filepath.Join("public", "files"),
			FilesURLPrefix: "/files",
		},
		Upload: UploadConfig{
			MaxImageBytes: 5 << 20,
			BaseURL:       "https://uploadthing.com",
			Version:       "6",
			Route:         "imageUploader",
			Timeout:       60 * time.Second,
		},
		Posts: PostsConfig{
			Statuses:        []string{"Active", "Inactive"},
			PublishStatuses: []string{"Publish", "Draft"},
		},
		Mongo: MongoConfig{
			Database: "naa",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Events: EventsConfig{
			Topic:          "naa.post.events",
			PublishTimeout: 5 * time.Second,
		},
	}
}

// Load reads the YAML file at path on top of Default and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	applyEnv(&c)
	return &c, nil
}

func InitApp() {
	base := GetBasePath()
	// load environment variables
	godotenv.Load(filepath.Join(base, ENV_FILE))

	cfgPath := ""
	if base != "" {
		cfgPath = filepath.Join(base, CONFIG_FILE)
	}
	c, err := Load(cfgPath)
	if err != nil {
		panic(err)
	}
	resolvePaths(c, base)
	config = c
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func applyEnv(c *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DATA_FILE"); v != "" {
		c.Storage.DataFile = v
	}
	if v := os.Getenv("FILES_DIR"); v != "" {
		c.Storage.FilesDir = v
	}
	if os.Getenv("VERCEL") != "" {
		c.Storage.ReadOnly = true
	}
	if v := os.Getenv("READ_ONLY_FS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Storage.ReadOnly = b
		}
	}

	c.Upload.APIKey = os.Getenv("UPLOADTHING_SECRET")
	if c.Upload.APIKey == "" {
		c.Upload.APIKey = os.Getenv("UPLOADTHING_TOKEN")
	}
	c.Upload.AppID = os.Getenv("UPLOADTHING_APP_ID")

	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_DB"); v != "" {
		c.Mongo.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); v != "" {
		c.Events.Brokers = v
	}
}

// resolvePaths anchors relative storage paths at the directory holding config.yaml.
func resolvePaths(c *AppConfig, base string) {
	if base == "" {
		return
	}
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Storage.DataFile = anchor(c.Storage.DataFile)
	c.Storage.SeedFile = anchor(c.Storage.SeedFile)
	c.Storage.FilesDir = anchor(c.Storage.FilesDir)
}

// RemoteUploadsEnabled reports whether images go to UploadThing instead of local disk.
func (c AppConfig) RemoteUploadsEnabled() bool {
	return c.Upload.APIKey != ""
}
