package domain

import "time"

// FallbackText is returned when no candidate is confident enough.
const FallbackText = "insufficient information, please rephrase or provide more detail"

// Citation is a cited document as shown to callers.
type Citation struct {
	Source Source `json:"source"`
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// Response is the terminal artifact handed across the system boundary.
type Response struct {
	Text string `json:"text"`

	// CitedDocuments are document ids in the order they were used.
	CitedDocuments []string `json:"cited_documents"`

	Citations       []Citation `json:"citations"`
	Confidence      float64    `json:"confidence"`
	FallbackUsed    bool       `json:"fallback_used"`
	PartialCoverage bool       `json:"partial_coverage"`
}

// Answer wraps a response with per-request metadata that is not cached.
type Answer struct {
	Response      Response
	InteractionID string
	Intent        Intent
	Cached        bool
	ElapsedTime   time.Duration
}
