package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"naa-posts/cmd/api/cache"
	"naa-posts/cmd/api/clients/uploadthing"
	"naa-posts/cmd/api/ingest"
	"naa-posts/cmd/api/repositories"
	"naa-posts/cmd/api/router"
	"naa-posts/cmd/api/services"
	"naa-posts/cmd/internal/eventbus"
	"naa-posts/cmd/internal/logger"
	"naa-posts/config"
	"naa-posts/db"
)

// @title           NAA Posts API
// @version         1.0
// @description     News and announcement posts with image ingestion
// @BasePath        /api
func main() {
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()

	repo, closeRepo := openRepository(ctx, cfg)
	defer closeRepo()

	postCache, closeCache := openCache(ctx, cfg.Cache)
	defer closeCache()

	events := openEvents(ctx, cfg.Events)
	defer events.Close()

	ut := uploadthing.FromConfig(cfg.Upload)
	backend := ingest.NewBackend(cfg, ut)
	ingestor := ingest.New(backend, cfg.Upload.MaxImageBytes)

	// a typed nil must not end up inside the interface
	var proxy services.Proxier
	if ut != nil {
		proxy = ut
	}

	loc := time.Local
	if cfg.Posts.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Posts.Timezone); err == nil {
			loc = l
		} else {
			logger.Log.Warnf("unknown timezone %q, using local: %v", cfg.Posts.Timezone, err)
		}
	}

	postSvc := services.NewPostService(repo, ingestor, postCache, events, services.PostOptions{
		Statuses:        cfg.Posts.Statuses,
		PublishStatuses: cfg.Posts.PublishStatuses,
		Location:        loc,
		Topic:           eventbus.NewTopic(cfg.Events.Topic),
		PublishTimeout:  cfg.Events.PublishTimeout,
	})
	uploadSvc := services.NewUploadService(ingestor, proxy)

	deps := router.Deps{
		Posts:          postSvc,
		Uploads:        uploadSvc,
		Store:          repo,
		StorageName:    cfg.Storage.Backend,
		UploadsName:    backend.Name(),
		FilesURLPrefix: cfg.Storage.FilesURLPrefix,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		MaxFileBytes:   cfg.Upload.MaxImageBytes,
	}
	if _, local := backend.(*ingest.LocalBackend); local {
		deps.FilesDir = cfg.Storage.FilesDir
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Handler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoWithFields("starting posts api", logger.Fields{
			"addr":    cfg.Server.Addr,
			"storage": cfg.Storage.Backend,
			"uploads": backend.Name(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("http server error: %v", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Log.Info("received shutdown signal, shutting down posts api...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("graceful shutdown failed: %v", err)
	}
	logger.Log.Info("posts api stopped")
}

func openRepository(ctx context.Context, cfg config.AppConfig) (repositories.PostRepository, func()) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMongo:
		if err := db.Init(ctx, cfg.Mongo); err != nil {
			logger.Log.Errorf("failed to initialize MongoDB: %v", err)
			os.Exit(1)
		}
		return repositories.NewMongoRepository(db.Database()), func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Close(closeCtx); err != nil {
				logger.Log.Warnf("mongo disconnect: %v", err)
			}
		}
	case config.StorageBackendFile, "":
		return repositories.NewFileRepository(cfg.Storage.DataFile, cfg.Storage.SeedFile), func() {}
	default:
		logger.Log.Errorf("unknown storage backend %q", cfg.Storage.Backend)
		os.Exit(1)
		return nil, nil
	}
}

// openCache Redis 설정이 없거나 연결할 수 없으면 캐시 없이 동작
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.PostCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NopCache{}, func() {}
	}
	rc := cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.TTL)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Log.Warnf("redis unavailable at %s, caching disabled: %v", cfg.RedisAddr, err)
		_ = rc.Close()
		return cache.NopCache{}, func() {}
	}
	return rc, func() { _ = rc.Close() }
}

func openEvents(ctx context.Context, cfg config.EventsConfig) eventbus.Publisher {
	if cfg.Brokers == "" {
		return eventbus.NopPublisher{}
	}
	topic := eventbus.NewTopic(cfg.Topic)
	if err := eventbus.EnsureTopics(ctx, cfg.Brokers, topic, 3); err != nil {
		logger.Log.Errorf("failed to ensure eventbus topics for %s: %v", topic.Base(), err)
	}
	bus, err := eventbus.NewKafkaEventBus(cfg.Brokers)
	if err != nil {
		logger.Log.Errorf("failed to create event bus, events disabled: %v", err)
		return eventbus.NopPublisher{}
	}
	return bus
}
