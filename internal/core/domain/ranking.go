package domain

import (
	"sort"
	"time"
)

// RankedCandidate is a document scored against one query.
type RankedCandidate struct {
	Document      Document
	LexicalScore  float64
	SemanticScore float64
	TrustScore    float64
	FinalScore    float64
}

// Less reports whether a ranks before b.
// Higher final score first, then higher document score, then lower id.
func (a *RankedCandidate) Less(b *RankedCandidate) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	if a.Document.Score != b.Document.Score {
		return a.Document.Score > b.Document.Score
	}
	if a.Document.ID != b.Document.ID {
		return a.Document.ID < b.Document.ID
	}
	return a.Document.Source < b.Document.Source
}

// SortCandidates orders candidates by rank.
func SortCandidates(candidates []RankedCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Less(&candidates[j])
	})
}

// RetrievalResult is the ranked candidate set plus coverage metadata.
type RetrievalResult struct {
	Candidates []RankedCandidate

	// PartialCoverage is set when at least one source failed.
	PartialCoverage bool

	// FailedSources lists the sources that failed for this request.
	FailedSources []Source
}

// Top returns the best candidate, or nil.
func (r *RetrievalResult) Top() *RankedCandidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// RankingConfig holds the ranking and synthesis knobs.
// MatchFloor is the lexical or semantic score a candidate needs on its own,
// so trust never lifts a document that does not match the query.
type RankingConfig struct {
	LexicalWeight      float64
	SemanticWeight     float64
	TrustWeight        float64
	MinRelevance       float64
	SemanticFloor      float64
	MatchFloor         float64
	SynthesisThreshold float64
	Margin             float64
	TopK               int
	CandidateLimit     int
	SourceTimeout      time.Duration
	LiveLookup         bool
}

// DefaultRankingConfig returns equal weights and the default thresholds.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		LexicalWeight:      1.0 / 3,
		SemanticWeight:     1.0 / 3,
		TrustWeight:        1.0 / 3,
		MinRelevance:       0.15,
		SemanticFloor:      0.2,
		MatchFloor:         0.5,
		SynthesisThreshold: 0.3,
		Margin:             0.15,
		TopK:               3,
		CandidateLimit:     50,
		SourceTimeout:      2 * time.Second,
		LiveLookup:         true,
	}
}

// Ranking returns the config itself so a static value satisfies settings providers.
func (c RankingConfig) Ranking() RankingConfig {
	return c
}
