package main

import (
	"context"
	"flag"
	"os"
	"time"

	"naa-posts/cmd/api/repositories"
	"naa-posts/cmd/internal/logger"
	"naa-posts/config"
	"naa-posts/db"
)

// importer copies every post from a JSON data file into MongoDB, upserting by id.
func main() {
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	dataFile := flag.String("file", cfg.Storage.DataFile, "data file to import ({posts,total} or a bare array)")
	flag.Parse()

	if _, err := os.Stat(*dataFile); err != nil {
		logger.Log.Errorf("cannot read data file %s: %v", *dataFile, err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := db.Init(ctx, cfg.Mongo); err != nil {
		logger.Log.Errorf("failed to initialize MongoDB: %v", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(closeCtx)
	}()

	source := repositories.NewFileRepository(*dataFile, "")
	target := repositories.NewMongoRepository(db.Database())

	imported, failed := 0, 0
	for _, p := range source.Load().Posts {
		if p.ID == "" {
			logger.WarnWithFields("skip post without id", logger.Fields{"title": p.Title})
			failed++
			continue
		}
		if err := target.Upsert(ctx, p); err != nil {
			logger.ErrorWithFields("failed to upsert post", logger.Fields{"post_id": p.ID, "error": err.Error()})
			failed++
			continue
		}
		imported++
	}

	logger.InfoWithFields("import finished", logger.Fields{
		"file":     *dataFile,
		"imported": imported,
		"failed":   failed,
	})
	if failed > 0 {
		os.Exit(1)
	}
}
