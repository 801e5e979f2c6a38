package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"thermorag/model"
	"thermorag/store"
	"thermorag/types"
)

const (
	ModeDocuments = "documents"
	ModeReports   = "reports"
	ModeHybrid    = "hybrid"
)

const (
	defaultLimit       = 5
	defaultHybridLimit = 10
	// recall/speed knob of the ANN search, fixed regardless of limit
	numCandidates = 50
)

// Service answers retrieval queries over the two vector collections. A failed
// sub-search (embedding or store) degrades to an empty result list instead of
// propagating: callers grounding chat answers must tolerate zero results.
type Service struct {
	store    store.VectorStorer
	embedder model.Embedder
	logger   *slog.Logger
}

func New(storer store.VectorStorer, embedder model.Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    storer,
		embedder: embedder,
		logger:   logger,
	}
}

// Search runs a vector search over documents, report sections, or both.
// Hybrid mode issues the two sub-searches concurrently and returns both
// result sets uncombined; no score fusion happens across collections.
func (s *Service) Search(ctx context.Context, query, mode string, opts types.SearchOptions) (*types.SearchResults, error) {
	switch mode {
	case ModeDocuments:
		limit := limitOrDefault(opts.Limit, defaultLimit)
		return &types.SearchResults{
			Documents: s.searchDocuments(ctx, query, limit, types.SourceType(opts.SourceType)),
		}, nil

	case ModeReports:
		limit := limitOrDefault(opts.Limit, defaultLimit)
		return &types.SearchResults{
			Reports: s.searchReports(ctx, query, limit, opts.PatientID),
		}, nil

	case ModeHybrid:
		limit := limitOrDefault(opts.Limit, defaultHybridLimit)
		results := &types.SearchResults{
			Documents: []types.DocumentChunk{},
			Reports:   []types.ReportSearchDocument{},
		}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if docs := s.searchDocuments(ctx, query, limit, types.SourceType(opts.SourceType)); docs != nil {
				results.Documents = docs
			}
		}()
		go func() {
			defer wg.Done()
			if reports := s.searchReports(ctx, query, limit, opts.PatientID); reports != nil {
				results.Reports = reports
			}
		}()
		wg.Wait()
		return results, nil

	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}

func (s *Service) searchDocuments(ctx context.Context, query string, limit int, sourceType types.SourceType) []types.DocumentChunk {
	queryVec, err := s.embedder.Embed(ctx, query, model.TaskRetrievalQuery)
	if err != nil {
		s.logger.Error("query embedding failed, returning empty document results", "error", err)
		return nil
	}
	docs, err := s.store.SearchDocuments(ctx, queryVec, numCandidates, limit, sourceType)
	if err != nil {
		s.logger.Error("document vector search failed, returning empty results", "error", err)
		return nil
	}
	return docs
}

func (s *Service) searchReports(ctx context.Context, query string, limit int, patientID string) []types.ReportSearchDocument {
	queryVec, err := s.embedder.Embed(ctx, query, model.TaskRetrievalQuery)
	if err != nil {
		s.logger.Error("query embedding failed, returning empty report results", "error", err)
		return nil
	}
	reports, err := s.store.SearchReports(ctx, queryVec, numCandidates, limit, patientID)
	if err != nil {
		s.logger.Error("report vector search failed, returning empty results", "error", err)
		return nil
	}
	return reports
}

func limitOrDefault(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
