package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"thermorag/model"
	"thermorag/store"
	"thermorag/types"

	"github.com/google/uuid"
)

// ingestWorkers bounds how many files are processed at once during directory
// ingestion; the embedding calls inside one file stay sequential to keep the
// external API request rate down.
const ingestWorkers = 2

// Service runs the ingestion pipeline: extract -> chunk -> detect language ->
// embed -> store. All collaborators are injected.
type Service struct {
	store    store.VectorStorer
	embedder model.Embedder
	cfg      types.Config
	logger   *slog.Logger
}

func New(storer store.VectorStorer, embedder model.Embedder, cfg types.Config, logger *slog.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = types.DefaultChunkSize
	}
	if cfg.MinChunkLength <= 0 {
		cfg.MinChunkLength = types.DefaultMinChunkLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    storer,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

type DirectoryResult struct {
	Skipped       bool `json:"skipped"`
	FilesTotal    int  `json:"filesTotal"`
	FilesIngested int  `json:"filesIngested"`
	FilesFailed   int  `json:"filesFailed"`
	ChunksCreated int  `json:"chunksCreated"`
}

type DocumentResult struct {
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunksCreated"`
}

// IngestDirectory indexes every .pdf in dir. If the documents collection is
// already non-empty the whole run is skipped unless force is set: the guard is
// collection-wide, not per-file, so force is the recovery path after a
// partially failed run. Per-file failures are logged and skipped.
func (s *Service) IngestDirectory(ctx context.Context, dir string, force bool) (*DirectoryResult, error) {
	count, err := s.store.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count > 0 && !force {
		s.logger.Info("documents already present, skipping directory ingestion",
			"count", count, "dir", dir)
		return &DirectoryResult{Skipped: true}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var pdfs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			pdfs = append(pdfs, entry.Name())
		}
	}

	result := &DirectoryResult{FilesTotal: len(pdfs)}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, ingestWorkers)
	)

	for _, name := range pdfs {
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			created, err := s.ingestPDFFile(ctx, filepath.Join(dir, name))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("failed to ingest file, continuing", "file", name, "error", err)
				result.FilesFailed++
				return
			}
			result.FilesIngested++
			result.ChunksCreated += created
			s.logger.Info("ingested file", "file", name, "chunks", created)
		}(name)
	}
	wg.Wait()

	return result, nil
}

func (s *Service) ingestPDFFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	text, pages, err := ExtractPDFText(raw)
	if err != nil {
		return 0, err
	}

	chunks, err := s.buildChunks(ctx, filepath.Base(path), text, pages, types.SourcePDF)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := s.store.InsertDocumentChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	return len(chunks), nil
}

// IngestDocument indexes one already-in-memory document. Content-type and
// size limits are enforced by the API layer before this is called.
func (s *Service) IngestDocument(ctx context.Context, filename string, raw []byte, contentType string) (*DocumentResult, error) {
	var (
		text       string
		pages      int
		sourceType types.SourceType
		err        error
	)
	switch contentType {
	case "text/plain":
		text = NormalizeText(string(raw))
		sourceType = types.SourceText
	case "application/pdf":
		text, pages, err = ExtractPDFText(raw)
		if err != nil {
			return nil, err
		}
		sourceType = types.SourcePDF
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
	if text == "" {
		return nil, ErrNoText
	}

	chunks, err := s.buildChunks(ctx, filename, text, pages, sourceType)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 {
		if err := s.store.InsertDocumentChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("insert chunks: %w", err)
		}
	}
	return &DocumentResult{Filename: filename, ChunksCreated: len(chunks)}, nil
}

// buildChunks runs the per-chunk pipeline: split, drop short chunks, tag
// language, embed. An embedding failure aborts the whole document; there is
// no partial fallback within a file.
func (s *Service) buildChunks(ctx context.Context, filename, text string, pages int, sourceType types.SourceType) ([]types.DocumentChunk, error) {
	parts := ChunkText(text, s.cfg.ChunkSize)
	title := TitleFromFilename(filename)
	now := time.Now()

	chunks := make([]types.DocumentChunk, 0, len(parts))
	for i, part := range parts {
		if len(strings.TrimSpace(part)) < s.cfg.MinChunkLength {
			continue
		}
		embedding, err := s.embedder.Embed(ctx, part, model.TaskRetrievalDocument)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i+1, err)
		}
		chunks = append(chunks, types.DocumentChunk{
			ID:         uuid.New(),
			Content:    part,
			Source:     filename,
			SourceType: sourceType,
			Metadata: types.ChunkMetadata{
				Filename:   filename,
				PageNumber: approxPage(i, pages),
				Timestamp:  now,
				Title:      title,
				Language:   DetectLanguage(part),
			},
			Embedding: embedding,
			CreatedAt: now,
		})
	}
	return chunks, nil
}

// approxPage estimates which page a chunk came from: roughly two chunks per
// page, clamped to the real page count when the extractor reported one.
func approxPage(chunkIndex, pages int) int {
	page := chunkIndex/2 + 1
	if pages > 0 && page > pages {
		page = pages
	}
	return page
}

// IngestReportSections embeds each non-empty section of a generated clinical
// report and upserts one search document per (reportID, section). Re-running
// for the same report refreshes rows instead of duplicating them.
func (s *Service) IngestReportSections(ctx context.Context, reportID, patientID string, sections map[string]types.ReportSection) (int, error) {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	docs := make([]types.ReportSearchDocument, 0, len(sections))
	for _, name := range names {
		section := sections[name]
		if strings.TrimSpace(section.Content) == "" {
			continue
		}

		full := section.Content + "\n\nFindings: " + strings.Join(section.Findings, ", ")
		embedding, err := s.embedder.Embed(ctx, full, model.TaskRetrievalDocument)
		if err != nil {
			return 0, fmt.Errorf("embed report section %q: %w", name, err)
		}
		docs = append(docs, types.ReportSearchDocument{
			ID:         uuid.New(),
			ReportID:   reportID,
			PatientID:  patientID,
			Content:    section.Content,
			Section:    name,
			Findings:   section.Findings,
			Confidence: section.Confidence,
			Embedding:  embedding,
			CreatedAt:  now,
		})
	}

	if len(docs) == 0 {
		return 0, nil
	}
	if err := s.store.UpsertReportSections(ctx, docs); err != nil {
		return 0, fmt.Errorf("upsert report sections: %w", err)
	}
	s.logger.Info("indexed report sections", "report", reportID, "sections", len(docs))
	return len(docs), nil
}
