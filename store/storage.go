package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"thermorag/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorStorer is the document store adapter: two append-only collections
// (general document chunks, report sections) with cosine ANN search over each.
type VectorStorer interface {
	InsertDocumentChunks(ctx context.Context, chunks []types.DocumentChunk) error
	UpsertReportSections(ctx context.Context, docs []types.ReportSearchDocument) error
	CountDocuments(ctx context.Context) (int64, error)
	CountReportSections(ctx context.Context) (int64, error)
	SearchDocuments(ctx context.Context, queryVec []float32, numCandidates, limit int, sourceType types.SourceType) ([]types.DocumentChunk, error)
	SearchReports(ctx context.Context, queryVec []float32, numCandidates, limit int, patientID string) ([]types.ReportSearchDocument, error)
}

// DimensionError reports a vector whose length does not match the collection's
// configured dimensionality. It indicates a model/collection misconfiguration
// and is never coerced.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, dim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if dim <= 0 {
		dim = types.DefaultEmbedDim
	}
	return &PostgresStore{
		pool:   pool,
		dim:    dim,
		logger: slog.Default(),
	}, nil
}

// Init creates the tables and vector indexes. Every statement is IF NOT
// EXISTS, so running it against a provisioned database is a no-op.
func (p *PostgresStore) Init(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS document_chunks (
		id UUID PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		source_type TEXT NOT NULL CHECK (source_type IN ('pdf','text','report','patient_data')),
		metadata JSONB NOT NULL DEFAULT '{}',
		embedding vector(%[1]d) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding
		ON document_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	CREATE INDEX IF NOT EXISTS idx_document_chunks_source_type ON document_chunks(source_type);

	CREATE TABLE IF NOT EXISTS report_sections (
		id UUID PRIMARY KEY,
		report_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		content TEXT NOT NULL,
		section TEXT NOT NULL,
		findings TEXT[] NOT NULL DEFAULT '{}',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		embedding vector(%[1]d) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		UNIQUE (report_id, section)
	);

	CREATE INDEX IF NOT EXISTS idx_report_sections_embedding
		ON report_sections USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	CREATE INDEX IF NOT EXISTS idx_report_sections_patient_id ON report_sections(patient_id);
	`, p.dim)

	_, err := p.pool.Exec(ctx, query)
	return err
}

// Dim returns the configured embedding dimensionality.
func (p *PostgresStore) Dim() int {
	return p.dim
}

func (p *PostgresStore) checkDim(embedding []float32) error {
	if len(embedding) != p.dim {
		return &DimensionError{Want: p.dim, Got: len(embedding)}
	}
	return nil
}

func (p *PostgresStore) InsertDocumentChunks(ctx context.Context, chunks []types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if err := p.checkDim(chunks[i].Embedding); err != nil {
			return err
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO document_chunks (id, content, source, source_type, metadata, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range chunks {
		c := &chunks[i]
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		_, err = tx.Exec(ctx, query,
			c.ID, c.Content, c.Source, string(c.SourceType), meta, pgvector.NewVector(c.Embedding), c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}
	return tx.Commit(ctx)
}

// UpsertReportSections writes one row per (report_id, section). Re-processing
// a report refreshes its rows instead of duplicating them.
func (p *PostgresStore) UpsertReportSections(ctx context.Context, docs []types.ReportSearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for i := range docs {
		if err := p.checkDim(docs[i].Embedding); err != nil {
			return err
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO report_sections (id, report_id, patient_id, content, section, findings, confidence, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (report_id, section) DO UPDATE SET
		patient_id = EXCLUDED.patient_id,
		content = EXCLUDED.content,
		findings = EXCLUDED.findings,
		confidence = EXCLUDED.confidence,
		embedding = EXCLUDED.embedding
	`
	for i := range docs {
		d := &docs[i]
		_, err = tx.Exec(ctx, query,
			d.ID, d.ReportID, d.PatientID, d.Content, d.Section, d.Findings, d.Confidence,
			pgvector.NewVector(d.Embedding), d.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert report section %q: %w", d.Section, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM document_chunks").Scan(&n)
	return n, err
}

func (p *PostgresStore) CountReportSections(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM report_sections").Scan(&n)
	return n, err
}

func (p *PostgresStore) SearchDocuments(ctx context.Context, queryVec []float32, numCandidates, limit int, sourceType types.SourceType) ([]types.DocumentChunk, error) {
	rows, err := p.vectorSearch(ctx, queryVec, numCandidates, limit, searchQuery{
		sql: `
		SELECT id, content, source, source_type, metadata, created_at,
		       1 - (embedding <=> $1) AS score
		FROM document_chunks`,
		filterCol: "source_type",
		filterVal: string(sourceType),
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.DocumentChunk
	for rows.Next() {
		var c types.DocumentChunk
		var meta []byte
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &c.SourceType, &meta, &c.CreatedAt, &c.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) SearchReports(ctx context.Context, queryVec []float32, numCandidates, limit int, patientID string) ([]types.ReportSearchDocument, error) {
	rows, err := p.vectorSearch(ctx, queryVec, numCandidates, limit, searchQuery{
		sql: `
		SELECT id, report_id, patient_id, content, section, findings, confidence, created_at,
		       1 - (embedding <=> $1) AS score
		FROM report_sections`,
		filterCol: "patient_id",
		filterVal: patientID,
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.ReportSearchDocument
	for rows.Next() {
		var d types.ReportSearchDocument
		if err := rows.Scan(&d.ID, &d.ReportID, &d.PatientID, &d.Content, &d.Section, &d.Findings, &d.Confidence, &d.CreatedAt, &d.Score); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

type searchQuery struct {
	sql       string
	filterCol string
	filterVal string
}

// vectorSearch runs a cosine ANN query inside a transaction so SET LOCAL
// ivfflat.probes (derived from numCandidates) only affects this query.
func (p *PostgresStore) vectorSearch(ctx context.Context, queryVec []float32, numCandidates, limit int, q searchQuery) (pgx.Rows, error) {
	if err := p.checkDim(queryVec); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if numCandidates < limit {
		return nil, fmt.Errorf("numCandidates (%d) must be >= limit (%d)", numCandidates, limit)
	}

	sql := q.sql
	args := []any{pgvector.NewVector(queryVec), limit}
	if q.filterVal != "" {
		sql += fmt.Sprintf("\n\t\tWHERE %s = $3", q.filterCol)
		args = append(args, q.filterVal)
	}
	sql += "\n\t\tORDER BY embedding <=> $1\n\t\tLIMIT $2"

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin search: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", probesFor(numCandidates))); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set search probes: %w", err)
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &txRows{Rows: rows, tx: tx, ctx: ctx}, nil
}

// probesFor maps the caller's recall/speed knob onto ivfflat probes.
func probesFor(numCandidates int) int {
	probes := numCandidates / 10
	if probes < 1 {
		probes = 1
	}
	if probes > 100 {
		probes = 100
	}
	return probes
}

// txRows commits the wrapping transaction when the caller closes the rows.
type txRows struct {
	pgx.Rows
	tx  pgx.Tx
	ctx context.Context
}

func (r *txRows) Close() {
	r.Rows.Close()
	_ = r.tx.Commit(r.ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool closed")
	}
	return nil
}
