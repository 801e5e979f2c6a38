package model

import (
	"context"
	"errors"
	"fmt"
)

// TaskType hints the embedding model whether the text is indexed content or a
// query to match against indexed content.
type TaskType string

const (
	TaskSemanticSimilarity TaskType = "SEMANTIC_SIMILARITY"
	TaskRetrievalDocument  TaskType = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery     TaskType = "RETRIEVAL_QUERY"
)

// Embedder turns a piece of text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string, task TaskType) ([]float32, error)
}

// ErrTimeout marks an embedding call that ran out of time, as opposed to one
// the model rejected.
var ErrTimeout = errors.New("embedding request timed out")

// EmbeddingError wraps a failed or empty response from the embedding model.
// Callers must treat it as fatal for the current chunk or query; there is no
// zero-vector fallback.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding with %s failed: %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
