package services

import (
	"fmt"
	"strings"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Synthesizer turns ranked candidates into one response.
// It performs no I/O and is deterministic for a given input.
type Synthesizer struct {
	settings driven.RankingSettings
}

// NewSynthesizer creates a synthesizer. A nil settings uses the defaults.
func NewSynthesizer(settings driven.RankingSettings) *Synthesizer {
	if settings == nil {
		settings = domain.DefaultRankingConfig()
	}
	return &Synthesizer{settings: settings}
}

// Synthesize builds a direct answer, a troubleshooting checklist or the fallback.
func (s *Synthesizer) Synthesize(rep *domain.QueryRepresentation, result *domain.RetrievalResult) domain.Response {
	cfg := s.settings.Ranking()
	if result == nil {
		result = &domain.RetrievalResult{}
	}

	top := result.Top()
	if top == nil || top.FinalScore < cfg.SynthesisThreshold {
		resp := fallbackResponse(result.PartialCoverage)
		if top != nil {
			resp.Confidence = top.FinalScore
		}
		return resp
	}

	k := cfg.TopK
	if k <= 0 {
		k = 1
	}
	selected := result.Candidates
	if len(selected) > k {
		selected = selected[:k]
	}

	var text string
	if len(selected) == 1 || selected[0].FinalScore-selected[1].FinalScore > cfg.Margin {
		selected = selected[:1]
		text = directAnswer(rep.Intent, &selected[0])
	} else {
		text = checklist(rep.Intent, selected)
	}

	resp := domain.Response{
		Text:            text,
		CitedDocuments:  make([]string, len(selected)),
		Citations:       make([]domain.Citation, len(selected)),
		Confidence:      top.FinalScore,
		PartialCoverage: result.PartialCoverage,
	}
	for i := range selected {
		doc := &selected[i].Document
		resp.CitedDocuments[i] = doc.ID
		resp.Citations[i] = domain.Citation{Source: doc.Source, ID: doc.ID, URL: doc.URL, Title: doc.Title}
	}
	return resp
}

func fallbackResponse(partial bool) domain.Response {
	return domain.Response{
		Text:            domain.FallbackText,
		CitedDocuments:  []string{},
		Citations:       []domain.Citation{},
		FallbackUsed:    true,
		PartialCoverage: partial,
	}
}

func directAnswer(intent domain.Intent, c *domain.RankedCandidate) string {
	doc := &c.Document
	var sb strings.Builder
	switch intent {
	case domain.IntentDocumentationLookup:
		fmt.Fprintf(&sb, "The closest reference is %s %q.", describe(doc), doc.Title)
	case domain.IntentTroubleshooting:
		fmt.Fprintf(&sb, "This looks like %s %q.", describe(doc), doc.Title)
	default:
		fmt.Fprintf(&sb, "The best match is %s %q.", describe(doc), doc.Title)
	}
	if p := salientPassage(doc); p != "" {
		sb.WriteString("\n\n")
		sb.WriteString(p)
	}
	if doc.URL != "" {
		sb.WriteString("\n\nSource: ")
		sb.WriteString(doc.URL)
	}
	return sb.String()
}

func checklist(intent domain.Intent, candidates []domain.RankedCandidate) string {
	var sb strings.Builder
	switch intent {
	case domain.IntentTroubleshooting, domain.IntentUnclassified:
		sb.WriteString("Several fixes have worked for similar problems. Try them in order:")
	default:
		sb.WriteString("Several answers look relevant, most relevant first:")
	}
	for i := range candidates {
		doc := &candidates[i].Document
		fmt.Fprintf(&sb, "\n\n%d. %s (%s)", i+1, doc.Title, doc.Source.Label())
		if p := salientPassage(doc); p != "" {
			sb.WriteString("\n   ")
			sb.WriteString(p)
		}
		if doc.URL != "" {
			sb.WriteString("\n   ")
			sb.WriteString(doc.URL)
		}
	}
	return sb.String()
}

// describe names the kind of document, e.g. "an answered StackOverflow question".
func describe(doc *domain.Document) string {
	switch doc.Source {
	case domain.SourceStackOverflow:
		if doc.HasAcceptedAnswer() {
			return "an answered StackOverflow question"
		}
		return "a StackOverflow question"
	case domain.SourceGitHub:
		if doc.Resolved {
			return "a resolved GitHub issue"
		}
		return "an open GitHub issue"
	default:
		return "a document"
	}
}

// salientPassage picks the accepted answer, else the most trusted comment, else the body.
func salientPassage(doc *domain.Document) string {
	if doc.HasAcceptedAnswer() {
		return passage(doc.AcceptedAnswer)
	}
	if c := bestComment(doc.Comments); c != nil {
		return passage(c.Body)
	}
	return passage(doc.Body)
}

// bestComment prefers accepted, then maintainer, then highest score, then earliest.
func bestComment(comments []domain.Comment) *domain.Comment {
	var best *domain.Comment
	rank := func(c *domain.Comment) (int, int, int) {
		a, m := 0, 0
		if c.Accepted {
			a = 1
		}
		if c.Maintainer {
			m = 1
		}
		return a, m, c.Score
	}
	for i := range comments {
		c := &comments[i]
		if strings.TrimSpace(c.Body) == "" {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		ca, cm, cs := rank(c)
		ba, bm, bs := rank(best)
		if ca > ba || (ca == ba && cm > bm) || (ca == ba && cm == bm && cs > bs) {
			best = c
		}
	}
	return best
}
