package api

import (
	"context"
	"time"

	"thermorag/search"
	"thermorag/types"

	"github.com/gofiber/fiber/v2"
)

// Searcher is implemented by search.Service.
type Searcher interface {
	Search(ctx context.Context, query, mode string, opts types.SearchOptions) (*types.SearchResults, error)
}

type SearchHandler struct {
	searcher Searcher
}

func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// HandleSearch serves POST /api/v1/search. A zero-match response is a valid
// success, never an error.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var params types.SearchParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	results, err := h.searcher.Search(c.Context(), params.Query, params.SearchType, params.Options)
	if err != nil {
		return err
	}

	// single-mode responses carry a flat list, hybrid carries both lists
	var payload any
	switch params.SearchType {
	case search.ModeDocuments:
		payload = emptyIfNilDocs(results.Documents)
	case search.ModeReports:
		payload = emptyIfNilReports(results.Reports)
	default:
		payload = results
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"query":      params.Query,
		"searchType": params.SearchType,
		"results":    payload,
		"timestamp":  time.Now().UTC(),
	})
}

func emptyIfNilDocs(docs []types.DocumentChunk) []types.DocumentChunk {
	if docs == nil {
		return []types.DocumentChunk{}
	}
	return docs
}

func emptyIfNilReports(reports []types.ReportSearchDocument) []types.ReportSearchDocument {
	if reports == nil {
		return []types.ReportSearchDocument{}
	}
	return reports
}
