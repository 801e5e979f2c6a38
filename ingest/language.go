package ingest

import "strings"

// Common function words; "thermografie" and "paarden" are in the Dutch list
// because the knowledge base is dominated by equine thermography material.
var (
	dutchWords = map[string]struct{}{
		"de": {}, "het": {}, "van": {}, "een": {}, "en": {}, "voor": {},
		"met": {}, "bij": {}, "thermografie": {}, "paarden": {},
	}
	englishWords = map[string]struct{}{
		"the": {}, "and": {}, "of": {}, "to": {}, "a": {}, "in": {},
		"is": {}, "it": {}, "with": {}, "for": {},
	}
)

const languageSampleWords = 50

// DetectLanguage classifies text as "nl" or "en" by counting stop words in
// the first 50 tokens. Dutch wins ties. The tag is advisory metadata only;
// the failure mode is a wrong tag, never an error.
func DetectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > languageSampleWords {
		words = words[:languageSampleWords]
	}

	var dutch, english int
	for _, w := range words {
		if _, ok := dutchWords[w]; ok {
			dutch++
		}
		if _, ok := englishWords[w]; ok {
			english++
		}
	}

	if english > dutch {
		return "en"
	}
	return "nl"
}
