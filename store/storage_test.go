package store

import (
	"context"
	"testing"

	"thermorag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The dimension check runs before any pool access, so a store without a live
// connection is enough to exercise it.
func TestInsertRejectsDimensionMismatch(t *testing.T) {
	p := &PostgresStore{dim: 768}

	err := p.InsertDocumentChunks(context.Background(), []types.DocumentChunk{
		{Content: "x", Embedding: []float32{1, 2, 3}},
	})
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 768, dimErr.Want)
	assert.Equal(t, 3, dimErr.Got)
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	p := &PostgresStore{dim: 768}

	err := p.UpsertReportSections(context.Background(), []types.ReportSearchDocument{
		{Section: "interpretation", Embedding: make([]float32, 767)},
	})
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
}

func TestVectorSearchRejectsBadArguments(t *testing.T) {
	p := &PostgresStore{dim: 4}
	vec := []float32{1, 0, 0, 0}

	_, err := p.SearchDocuments(context.Background(), []float32{1, 2}, 50, 5, "")
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)

	_, err = p.SearchDocuments(context.Background(), vec, 3, 5, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numCandidates")

	_, err = p.SearchReports(context.Background(), vec, 50, 0, "")
	require.Error(t, err)
}

func TestProbesFor(t *testing.T) {
	assert.Equal(t, 1, probesFor(5))
	assert.Equal(t, 5, probesFor(50))
	assert.Equal(t, 100, probesFor(5000))
}
