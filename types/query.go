package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// SearchParams is the body of POST /api/v1/search.
type SearchParams struct {
	Query      string        `json:"query" validate:"required"`
	SearchType string        `json:"searchType" validate:"required,oneof=documents reports hybrid"`
	Options    SearchOptions `json:"options"`
}

type SearchOptions struct {
	Limit      int    `json:"limit,omitempty"`
	SourceType string `json:"sourceType,omitempty"`
	PatientID  string `json:"patientId,omitempty"`
}

// UploadParams is the body of POST /api/v1/knowledge/upload. Content is the
// base64-encoded file body.
type UploadParams struct {
	Filename    string `json:"filename" validate:"required"`
	Content     string `json:"content" validate:"required"`
	ContentType string `json:"contentType" validate:"required,oneof=application/pdf text/plain"`
}

// ReportEmbedParams is the body of POST /api/v1/reports/embeddings.
type ReportEmbedParams struct {
	ReportID   string                   `json:"reportId" validate:"required"`
	PatientID  string                   `json:"patientId" validate:"required"`
	ReportData map[string]ReportSection `json:"reportData" validate:"required"`
}

// InitializeParams is the body of POST /api/v1/knowledge/initialize.
type InitializeParams struct {
	Force bool `json:"force"`
}

func (params *SearchParams) Validate() map[string]string      { return validateStruct(params) }
func (params *UploadParams) Validate() map[string]string      { return validateStruct(params) }
func (params *ReportEmbedParams) Validate() map[string]string { return validateStruct(params) }

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusBadRequest,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

// SearchResults holds the outcome of one retrieval call. Single-mode searches
// fill only their own list; hybrid fills both, uncombined.
type SearchResults struct {
	Documents []DocumentChunk        `json:"documents"`
	Reports   []ReportSearchDocument `json:"reports"`
}
