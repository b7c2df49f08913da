package domain

import "time"

// Interaction is a logged query and the response it received.
type Interaction struct {
	ID             string
	Query          string
	Intent         Intent
	Confidence     float64
	FallbackUsed   bool
	Cached         bool
	CitedDocuments []string
	Topics         []string
	CreatedAt      time.Time
}

// Feedback is a user rating of an interaction.
type Feedback struct {
	ID            string
	InteractionID string
	Rating        int
	Comment       string
	CreatedAt     time.Time
}

// TopicCount is a topic and how often it was asked about.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// InteractionStats aggregates the interaction log.
type InteractionStats struct {
	TotalQueries      int            `json:"total_queries"`
	FallbackCount     int            `json:"fallback_count"`
	CachedCount       int            `json:"cached_count"`
	AverageConfidence float64        `json:"average_confidence"`
	ByIntent          map[Intent]int `json:"by_intent"`
	FeedbackCount     int            `json:"feedback_count"`
	AverageRating     float64        `json:"average_rating"`
}

// BudgetStatus is the governor's view of one source budget.
type BudgetStatus struct {
	Source    Source    `json:"source"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at,omitempty"`
}

// UsageStats is the combined view served by the stats endpoint.
type UsageStats struct {
	Interactions InteractionStats `json:"interactions"`
	Documents    map[Source]int   `json:"documents"`
	Sync         []SyncState      `json:"sync"`
	Budgets      []BudgetStatus   `json:"budgets"`
}
