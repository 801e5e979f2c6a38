package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"thermorag/ingest"
	"thermorag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	results *types.SearchResults
	err     error

	gotQuery string
	gotMode  string
	gotOpts  types.SearchOptions
}

func (f *fakeSearcher) Search(_ context.Context, query, mode string, opts types.SearchOptions) (*types.SearchResults, error) {
	f.gotQuery, f.gotMode, f.gotOpts = query, mode, opts
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	return &types.SearchResults{}, nil
}

type fakeIngester struct {
	dirResult *ingest.DirectoryResult
	docResult *ingest.DocumentResult
	err       error

	gotFilename    string
	gotContentType string
	gotRaw         []byte
	gotForce       bool
}

func (f *fakeIngester) IngestDirectory(_ context.Context, dir string, force bool) (*ingest.DirectoryResult, error) {
	f.gotForce = force
	if f.err != nil {
		return nil, f.err
	}
	if f.dirResult != nil {
		return f.dirResult, nil
	}
	return &ingest.DirectoryResult{}, nil
}

func (f *fakeIngester) IngestDocument(_ context.Context, filename string, raw []byte, contentType string) (*ingest.DocumentResult, error) {
	f.gotFilename, f.gotRaw, f.gotContentType = filename, raw, contentType
	if f.err != nil {
		return nil, f.err
	}
	if f.docResult != nil {
		return f.docResult, nil
	}
	return &ingest.DocumentResult{Filename: filename}, nil
}

func (f *fakeIngester) IngestReportSections(_ context.Context, reportID, patientID string, sections map[string]types.ReportSection) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(sections), nil
}

type fakeCounter struct{ docs, reports int64 }

func (f *fakeCounter) InsertDocumentChunks(context.Context, []types.DocumentChunk) error   { return nil }
func (f *fakeCounter) UpsertReportSections(context.Context, []types.ReportSearchDocument) error {
	return nil
}
func (f *fakeCounter) CountDocuments(context.Context) (int64, error)      { return f.docs, nil }
func (f *fakeCounter) CountReportSections(context.Context) (int64, error) { return f.reports, nil }
func (f *fakeCounter) SearchDocuments(context.Context, []float32, int, int, types.SourceType) ([]types.DocumentChunk, error) {
	return nil, nil
}
func (f *fakeCounter) SearchReports(context.Context, []float32, int, int, string) ([]types.ReportSearchDocument, error) {
	return nil, nil
}

func newTestApp(searcher *fakeSearcher, ingester *fakeIngester) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    16 << 20,
	})
	searchHandler := NewSearchHandler(searcher)
	ingestHandler := NewIngestHandler(ingester, &fakeCounter{docs: 12, reports: 4}, "/data")

	apiv1 := app.Group("/api/v1")
	apiv1.Post("/search", searchHandler.HandleSearch)
	apiv1.Post("/knowledge/initialize", ingestHandler.HandleInitialize)
	apiv1.Post("/knowledge/upload", ingestHandler.HandleUpload)
	apiv1.Get("/knowledge/status", ingestHandler.HandleStatus)
	apiv1.Post("/reports/embeddings", ingestHandler.HandleReportEmbeddings)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestSearchRejectsNonStringQuery(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/search", `{"query": 123, "searchType": "documents"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchRejectsMissingQuery(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/search", `{"searchType": "documents"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchRejectsUnknownSearchType(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/search", `{"query": "q", "searchType": "lexical"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchDocumentsReturnsFlatList(t *testing.T) {
	searcher := &fakeSearcher{results: &types.SearchResults{
		Documents: []types.DocumentChunk{{Content: "hit", SourceType: types.SourcePDF}},
	}}
	app := newTestApp(searcher, &fakeIngester{})

	resp := postJSON(t, app, "/api/v1/search",
		`{"query": "tarsus", "searchType": "documents", "options": {"limit": 3, "sourceType": "pdf"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "tarsus", searcher.gotQuery)
	assert.Equal(t, "documents", searcher.gotMode)
	assert.Equal(t, 3, searcher.gotOpts.Limit)
	results, ok := body["results"].([]any)
	require.True(t, ok, "documents mode returns a flat list")
	assert.Len(t, results, 1)
}

func TestSearchHybridReturnsBothLists(t *testing.T) {
	searcher := &fakeSearcher{results: &types.SearchResults{
		Documents: []types.DocumentChunk{},
		Reports:   []types.ReportSearchDocument{},
	}}
	app := newTestApp(searcher, &fakeIngester{})

	resp := postJSON(t, app, "/api/v1/search", `{"query": "q", "searchType": "hybrid"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	results, ok := body["results"].(map[string]any)
	require.True(t, ok, "hybrid mode returns both lists")
	_, hasDocs := results["documents"]
	_, hasReports := results["reports"]
	assert.True(t, hasDocs)
	assert.True(t, hasReports)
}

func TestSearchEmptyResultIsSuccess(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/search", `{"query": "nothing matches", "searchType": "documents"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadRejectsUnsupportedContentType(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/knowledge/upload",
		`{"filename": "a.docx", "content": "aGVsbG8=", "contentType": "application/msword"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRejectsOversizedPayload(t *testing.T) {
	ingester := &fakeIngester{}
	app := newTestApp(&fakeSearcher{}, ingester)

	big := strings.Repeat("A", (MaxUploadBytes/3)*4+8)
	body := fmt.Sprintf(`{"filename": "big.pdf", "content": %q, "contentType": "application/pdf"}`, big)
	resp := postJSON(t, app, "/api/v1/knowledge/upload", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ingester.gotFilename, "oversized payload must be rejected before processing")
}

func TestUploadRejectsInvalidBase64(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/knowledge/upload",
		`{"filename": "a.pdf", "content": "!!not-base64!!", "contentType": "application/pdf"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadSuccess(t *testing.T) {
	ingester := &fakeIngester{docResult: &ingest.DocumentResult{Filename: "notes.txt", ChunksCreated: 4}}
	app := newTestApp(&fakeSearcher{}, ingester)

	content := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("thermography notes. "), 10))
	body := fmt.Sprintf(`{"filename": "notes.txt", "content": %q, "contentType": "text/plain"}`, content)
	resp := postJSON(t, app, "/api/v1/knowledge/upload", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, float64(4), out["chunksCreated"])
	assert.Equal(t, "text/plain", ingester.gotContentType)
	assert.Equal(t, bytes.Repeat([]byte("thermography notes. "), 10), ingester.gotRaw)
}

func TestUploadExtractionFailure(t *testing.T) {
	ingester := &fakeIngester{err: ingest.ErrNoText}
	app := newTestApp(&fakeSearcher{}, ingester)

	resp := postJSON(t, app, "/api/v1/knowledge/upload",
		`{"filename": "scan.pdf", "content": "aGVsbG8=", "contentType": "application/pdf"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestInitializePassesForce(t *testing.T) {
	ingester := &fakeIngester{dirResult: &ingest.DirectoryResult{FilesTotal: 2, FilesIngested: 2, ChunksCreated: 9}}
	app := newTestApp(&fakeSearcher{}, ingester)

	resp := postJSON(t, app, "/api/v1/knowledge/initialize", `{"force": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ingester.gotForce)

	out := decodeBody(t, resp)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "/data", out["dataPath"])
}

func TestReportEmbeddingsRejectsMissingIDs(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/reports/embeddings",
		`{"patientId": "pat-1", "reportData": {}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportEmbeddingsSuccess(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	resp := postJSON(t, app, "/api/v1/reports/embeddings",
		`{"reportId": "rep-1", "patientId": "pat-1", "reportData": {"interpretation": {"content": "c", "findings": [], "confidence": 80}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, float64(1), out["sectionsIndexed"])
}

func TestStatusReportsCounts(t *testing.T) {
	app := newTestApp(&fakeSearcher{}, &fakeIngester{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/status", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, float64(12), out["documents"])
	assert.Equal(t, float64(4), out["reportSections"])
}
