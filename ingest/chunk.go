package ingest

import (
	"regexp"
	"strings"
)

// Sentences end on ., ! or ?; the trailing alternative keeps text after the
// last punctuation mark so no words are lost.
var sentenceSplitter = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

// ChunkText splits text into sentence-respecting chunks of at most maxWords
// words. The limit is advisory: a single sentence longer than maxWords is
// emitted as one oversized chunk rather than split mid-sentence. Chunks are
// disjoint and in original order.
func ChunkText(text string, maxWords int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxWords <= 0 {
		maxWords = 1
	}

	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}

	var chunks []string
	var current string
	wordCount := 0

	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if n == 0 {
			continue
		}
		if wordCount+n > maxWords && strings.TrimSpace(current) != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = sentence
			wordCount = n
		} else {
			current += " " + sentence
			wordCount += n
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}
