package main

import (
	"context"
	"flag"
	"log"

	"thermorag/ingest"
	"thermorag/model"
	"thermorag/store"
	"thermorag/types"

	"github.com/joho/godotenv"
)

// One-shot loader: indexes every PDF in the data directory and exits. The
// server's initialize endpoint does the same thing over HTTP.
func main() {
	force := flag.Bool("force", false, "ingest even if the collection already has documents")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}
	cfg := types.ConfigFromEnv()

	ctx := context.Background()
	pool, err := store.NewPostgresStore(ctx, types.PostgresDSN(), cfg.EmbedDim)
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
	}
	defer pool.Close()

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error creating tables and vector indexes: ", err)
	}

	embedder := model.NewGeminiEmbedder(cfg.EmbedURL, cfg.EmbedAPIKey, cfg.EmbedModel)
	svc := ingest.New(pool, embedder, cfg, nil)

	result, err := svc.IngestDirectory(ctx, cfg.DataDir, *force)
	if err != nil {
		log.Fatal("directory ingestion failed: ", err)
	}
	if result.Skipped {
		log.Println("documents already present, nothing to do (use -force to re-ingest)")
		return
	}
	log.Printf("ingested %d of %d files (%d failed), %d chunks created",
		result.FilesIngested, result.FilesTotal, result.FilesFailed, result.ChunksCreated)
}
