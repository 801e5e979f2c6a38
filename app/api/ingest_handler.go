package api

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"thermorag/ingest"
	"thermorag/store"
	"thermorag/types"

	"github.com/gofiber/fiber/v2"
)

// MaxUploadBytes is the decoded size limit for single-document uploads.
const MaxUploadBytes = 10 << 20

// Ingester is implemented by ingest.Service.
type Ingester interface {
	IngestDirectory(ctx context.Context, dir string, force bool) (*ingest.DirectoryResult, error)
	IngestDocument(ctx context.Context, filename string, raw []byte, contentType string) (*ingest.DocumentResult, error)
	IngestReportSections(ctx context.Context, reportID, patientID string, sections map[string]types.ReportSection) (int, error)
}

type IngestHandler struct {
	ingester Ingester
	store    store.VectorStorer
	dataDir  string
}

func NewIngestHandler(ingester Ingester, storer store.VectorStorer, dataDir string) *IngestHandler {
	return &IngestHandler{
		ingester: ingester,
		store:    storer,
		dataDir:  dataDir,
	}
}

// HandleInitialize serves POST /api/v1/knowledge/initialize: index every PDF
// in the configured data directory. Per-file failures are reflected in the
// counts, not in the status code.
func (h *IngestHandler) HandleInitialize(c *fiber.Ctx) error {
	var params types.InitializeParams
	if len(c.Body()) > 0 && c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	result, err := h.ingester.IngestDirectory(c.Context(), h.dataDir, params.Force)
	if err != nil {
		return err
	}

	message := "vector database initialized"
	if result.Skipped {
		message = "existing documents found, skipping initialization"
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   message,
		"dataPath":  h.dataDir,
		"result":    result,
		"timestamp": time.Now().UTC(),
	})
}

// HandleUpload serves POST /api/v1/knowledge/upload. Content type and payload
// size are rejected before any decoding or external call.
func (h *IngestHandler) HandleUpload(c *fiber.Ctx) error {
	var params types.UploadParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	// base64 inflates by 4/3, so estimate the decoded size before decoding
	if len(params.Content)*3/4 > MaxUploadBytes {
		return ErrPayloadTooLarge(MaxUploadBytes)
	}

	raw, err := base64.StdEncoding.DecodeString(params.Content)
	if err != nil {
		return NewError(fiber.StatusBadRequest, "content is not valid base64")
	}

	result, err := h.ingester.IngestDocument(c.Context(), params.Filename, raw, params.ContentType)
	if err != nil {
		if errors.Is(err, ingest.ErrNoText) {
			return NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "document successfully processed and indexed",
		"filename":      params.Filename,
		"chunksCreated": result.ChunksCreated,
		"timestamp":     time.Now().UTC(),
	})
}

// HandleReportEmbeddings serves POST /api/v1/reports/embeddings: index the
// sections of a generated clinical report for retrieval.
func (h *IngestHandler) HandleReportEmbeddings(c *fiber.Ctx) error {
	var params types.ReportEmbedParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	indexed, err := h.ingester.IngestReportSections(c.Context(), params.ReportID, params.PatientID, params.ReportData)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"reportId":        params.ReportID,
		"sectionsIndexed": indexed,
		"timestamp":       time.Now().UTC(),
	})
}

// HandleStatus serves GET /api/v1/knowledge/status with collection counts.
func (h *IngestHandler) HandleStatus(c *fiber.Ctx) error {
	docs, err := h.store.CountDocuments(c.Context())
	if err != nil {
		return err
	}
	reports, err := h.store.CountReportSections(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"documents":      docs,
		"reportSections": reports,
		"dataPath":       h.dataDir,
		"timestamp":      time.Now().UTC(),
	})
}
