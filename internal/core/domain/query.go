package domain

import "time"

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentTroubleshooting     Intent = "troubleshooting"
	IntentCodingGuidance      Intent = "coding_guidance"
	IntentDocumentationLookup Intent = "documentation_lookup"
	IntentGeneralInfo         Intent = "general_info"
	IntentUnclassified        Intent = "unclassified"
)

// ClassifiedIntents returns the intents a classifier may produce, excluding Unclassified.
func ClassifiedIntents() []Intent {
	return []Intent{
		IntentTroubleshooting,
		IntentCodingGuidance,
		IntentDocumentationLookup,
		IntentGeneralInfo,
	}
}

// Query is an incoming question. It is never persisted beyond cache keying.
type Query struct {
	RawText    string
	ReceivedAt time.Time
}

// QueryRepresentation is the structured form of a query used by retrieval.
type QueryRepresentation struct {
	// Intent is the classified intent, Unclassified below the confidence floor.
	Intent Intent

	// Confidence is the classifier confidence in [0,1].
	Confidence float64

	// Entities are error codes, library names and stack frames in order of appearance.
	Entities []string

	// Keywords are salient terms, most frequent first.
	Keywords []string

	// CodeTokens are tokens lifted out of code fences and inline code.
	CodeTokens []string

	// Normalized is the case-folded text with markup removed.
	Normalized string

	// Embedding is the semantic vector of Normalized.
	Embedding []float32
}

// CacheKey is the response cache key: normalised text plus intent.
func (r *QueryRepresentation) CacheKey() string {
	return string(r.Intent) + "|" + r.Normalized
}

// Topics returns entities then keywords without duplicates.
func (r *QueryRepresentation) Topics() []string {
	return IndexQuery{Entities: r.Entities, Keywords: r.Keywords}.Terms()
}
