package server

import (
	"context"
	"log"
	"log/slog"

	"thermorag/app/api"
	"thermorag/ingest"
	"thermorag/model"
	"thermorag/search"
	"thermorag/store"
	"thermorag/types"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    16 << 20, // base64-encoded uploads run over the 10MB raw limit
}

type Server struct {
	cfg    types.Config
	logger *slog.Logger
	store  *store.PostgresStore
}

func NewServer(cfg types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.store != nil {
		_ = s.store.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	pool, err := store.NewPostgresStore(ctx, types.PostgresDSN(), s.cfg.EmbedDim)
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
		return
	}
	s.store = pool

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error creating tables and vector indexes: ", err)
		return
	}

	embedder := model.NewGeminiEmbedder(s.cfg.EmbedURL, s.cfg.EmbedAPIKey, s.cfg.EmbedModel)

	var (
		app           = fiber.New(config)
		checkHandler  = api.NewCheckHandler()
		ingestHandler = api.NewIngestHandler(ingest.New(pool, embedder, s.cfg, s.logger), pool, s.cfg.DataDir)
		searchHandler = api.NewSearchHandler(search.New(pool, embedder, s.logger))
		check         = app.Group("/check")
		apiv1         = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/knowledge/initialize", ingestHandler.HandleInitialize)
	apiv1.Post("/knowledge/upload", ingestHandler.HandleUpload)
	apiv1.Get("/knowledge/status", ingestHandler.HandleStatus)
	apiv1.Post("/reports/embeddings", ingestHandler.HandleReportEmbeddings)
	apiv1.Post("/search", searchHandler.HandleSearch)

	if err := app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error starting server", "error", err.Error())
	}
}
