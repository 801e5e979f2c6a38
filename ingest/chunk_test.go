package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentenceText(sentences, wordsPerSentence int) string {
	var sb strings.Builder
	word := 0
	for i := 0; i < sentences; i++ {
		for j := 0; j < wordsPerSentence; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "w%04d", word)
			word++
		}
		sb.WriteString(". ")
	}
	return sb.String()
}

func TestChunkTextCoversAllWords(t *testing.T) {
	inputs := []string{
		"One sentence only.",
		"First sentence. Second one! Third, a question? Trailing words without punctuation",
		sentenceText(40, 7),
		"no punctuation at all just a stream of words going on and on",
	}
	for _, text := range inputs {
		for _, maxWords := range []int{1, 3, 10, 500} {
			chunks := ChunkText(text, maxWords)
			got := strings.Fields(strings.Join(chunks, " "))
			want := strings.Fields(text)
			assert.Equal(t, want, got, "maxWords=%d text=%q", maxWords, text)
		}
	}
}

func TestChunkTextSizeBound(t *testing.T) {
	text := sentenceText(30, 8)
	maxWords := 20
	chunks := ChunkText(text, maxWords)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks[:len(chunks)-1] {
		assert.LessOrEqual(t, len(strings.Fields(chunk)), maxWords, "chunk %d over limit", i)
	}
}

func TestChunkTextOversizedSentenceKeptWhole(t *testing.T) {
	long := strings.Repeat("word ", 30) + "."
	chunks := ChunkText("Short one. "+long+" Another short.", 10)
	var found bool
	for _, chunk := range chunks {
		if len(strings.Fields(chunk)) > 10 {
			found = true
		}
	}
	assert.True(t, found, "long sentence should be emitted as one oversized chunk")
}

func TestChunkTextDegenerateInputs(t *testing.T) {
	assert.Nil(t, ChunkText("", 100))
	assert.Nil(t, ChunkText("   \n\t ", 100))

	chunks := ChunkText("just some words with no sentence ending", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "just some words with no sentence ending", chunks[0])
}

func TestChunkTextTwelveHundredWords(t *testing.T) {
	// 120 sentences of 10 words: greedy accumulation at 500 words per chunk
	// yields exactly 500/500/200
	text := sentenceText(120, 10)
	chunks := ChunkText(text, 500)
	require.Len(t, chunks, 3)
	assert.Equal(t, 500, len(strings.Fields(chunks[0])))
	assert.Equal(t, 500, len(strings.Fields(chunks[1])))
	assert.Equal(t, 200, len(strings.Fields(chunks[2])))
}
