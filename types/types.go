package types

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourcePDF         SourceType = "pdf"
	SourceText        SourceType = "text"
	SourceReport      SourceType = "report"
	SourcePatientData SourceType = "patient_data"
)

// ChunkMetadata carries optional provenance fields for a chunk. Extra is the
// extension point for anything the enumerated fields don't cover.
type ChunkMetadata struct {
	Filename   string            `json:"filename,omitempty"`
	PageNumber int               `json:"pageNumber,omitempty"`
	PatientID  string            `json:"patientId,omitempty"`
	ReportID   string            `json:"reportId,omitempty"`
	Timestamp  time.Time         `json:"timestamp,omitzero"`
	Title      string            `json:"title,omitempty"`
	Language   string            `json:"language,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// DocumentChunk is the unit of indexed text. Chunks are insert-only: created
// during ingestion, never mutated, removed only by clearing the collection.
type DocumentChunk struct {
	ID         uuid.UUID     `json:"id"`
	Content    string        `json:"content"`
	Source     string        `json:"source"`
	SourceType SourceType    `json:"sourceType"`
	Metadata   ChunkMetadata `json:"metadata"`
	Embedding  []float32     `json:"-"`
	Score      float64       `json:"score,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// ReportSection is one named section of a generated clinical report as
// delivered by the upstream analysis.
type ReportSection struct {
	Content    string   `json:"content"`
	Findings   []string `json:"findings"`
	Confidence float64  `json:"confidence"`
}

// ReportSearchDocument is a searchable record derived from one report section,
// keyed by (reportId, section).
type ReportSearchDocument struct {
	ID         uuid.UUID `json:"id"`
	ReportID   string    `json:"reportId"`
	PatientID  string    `json:"patientId"`
	Content    string    `json:"content"`
	Section    string    `json:"section"`
	Findings   []string  `json:"findings"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"-"`
	Score      float64   `json:"score,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Config struct {
	ServerAddr     string
	DataDir        string
	EmbedURL       string
	EmbedAPIKey    string
	EmbedModel     string
	EmbedDim       int
	ChunkSize      int
	MinChunkLength int
}

const (
	DefaultChunkSize      = 500 // words per chunk
	DefaultMinChunkLength = 50  // characters, shorter chunks are dropped
	DefaultEmbedDim       = 768
)

func ConfigFromEnv() Config {
	return Config{
		ServerAddr:     os.Getenv("SERVER_ADDR"),
		DataDir:        os.Getenv("DATA_DIR"),
		EmbedURL:       os.Getenv("EMBEDDING_URL"),
		EmbedAPIKey:    os.Getenv("EMBEDDING_API_KEY"),
		EmbedModel:     os.Getenv("EMBEDDING_MODEL"),
		EmbedDim:       envInt("EMBEDDING_DIM", DefaultEmbedDim),
		ChunkSize:      envInt("CHUNK_SIZE", DefaultChunkSize),
		MinChunkLength: envInt("MIN_CHUNK_LENGTH", DefaultMinChunkLength),
	}
}

// PostgresDSN builds the connection string from PG_* variables the same way
// for the server and the loader binary.
func PostgresDSN() string {
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
