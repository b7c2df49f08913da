package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	QueryID         string            `json:"query_id,omitempty"`
	Answer          string            `json:"answer"`
	Citations       []domain.Citation `json:"citations"`
	Confidence      float64           `json:"confidence"`
	Fallback        bool              `json:"fallback"`
	PartialCoverage bool              `json:"partial_coverage"`
	Intent          domain.Intent     `json:"intent"`
	Cached          bool              `json:"cached"`
	ElapsedMillis   int64             `json:"elapsed_ms"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	QueryID string `json:"query_id" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=4000"`
}

// FeedbackResponse is the body returned by POST /feedback.
type FeedbackResponse struct {
	ID      string `json:"id"`
	QueryID string `json:"query_id"`
	Rating  int    `json:"rating"`
}

// SearchResult is one hit returned by GET /search.
type SearchResult struct {
	Source   domain.Source `json:"source"`
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Tags     []string      `json:"tags"`
	Score    float64       `json:"score"`
	Resolved bool          `json:"resolved"`
}

// RefreshResult is the outcome of one source refresh.
type RefreshResult struct {
	Source    domain.Source `json:"source"`
	Upserted  int           `json:"upserted"`
	Skipped   int           `json:"skipped"`
	Watermark string        `json:"watermark,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status  string          `json:"status"`
	Sources []domain.Source `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	answer, err := s.ports.Answer.Ask(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewQueryResponse(answer))
}

// NewQueryResponse renders an answer in the POST /query response shape.
func NewQueryResponse(answer *domain.Answer) QueryResponse {
	resp := answer.Response
	citations := resp.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}
	return QueryResponse{
		QueryID:         answer.InteractionID,
		Answer:          resp.Text,
		Citations:       citations,
		Confidence:      resp.Confidence,
		Fallback:        resp.FallbackUsed,
		PartialCoverage: resp.PartialCoverage,
		Intent:          answer.Intent,
		Cached:          answer.Cached,
		ElapsedMillis:   answer.ElapsedTime.Milliseconds(),
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.ports.Feedback == nil {
		writeMessage(w, http.StatusNotImplemented, "not_implemented", "feedback is not enabled")
		return
	}
	var req FeedbackRequest
	if !s.decode(w, r, &req) {
		return
	}

	fb, err := s.ports.Feedback.Submit(r.Context(), req.QueryID, req.Rating, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FeedbackResponse{ID: fb.ID, QueryID: fb.InteractionID, Rating: fb.Rating})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeMessage(w, http.StatusBadRequest, "invalid_request", "q is required")
		return
	}
	limit, ok := intParam(w, q.Get("limit"), "limit")
	if !ok {
		return
	}

	results, err := s.ports.Search.Search(r.Context(), query, driving.SearchOptions{
		Source: domain.Source(strings.ToLower(q.Get("source"))),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]SearchResult, len(results))
	for i := range results {
		doc := &results[i].Document
		tags := doc.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = SearchResult{
			Source:   doc.Source,
			ID:       doc.ID,
			Title:    doc.Title,
			URL:      doc.URL,
			Tags:     tags,
			Score:    results[i].Score,
			Resolved: doc.Resolved,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.ports.Refresh == nil {
		writeMessage(w, http.StatusNotImplemented, "not_implemented", "refresh is not enabled")
		return
	}

	var (
		results []domain.RefreshResult
		err     error
	)
	if v := r.URL.Query().Get("source"); v != "" {
		source, parseErr := domain.ParseSource(v)
		if parseErr != nil {
			writeError(w, parseErr)
			return
		}
		var result domain.RefreshResult
		result, err = s.ports.Refresh.RefreshSource(r.Context(), source)
		if errors.Is(err, domain.ErrUnknownSource) {
			writeError(w, err)
			return
		}
		results = []domain.RefreshResult{result}
	} else {
		results, err = s.ports.Refresh.RefreshAll(r.Context())
	}

	out := make([]RefreshResult, len(results))
	for i, res := range results {
		out[i] = RefreshResult{Source: res.Source, Upserted: res.Upserted, Skipped: res.Skipped}
		if !res.Watermark.IsZero() {
			out[i].Watermark = res.Watermark.UTC().Format(time.RFC3339)
		}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.ports.Feedback == nil {
		writeMessage(w, http.StatusNotImplemented, "not_implemented", "stats are not enabled")
		return
	}
	stats, err := s.ports.Feedback.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePopularTopics(w http.ResponseWriter, r *http.Request) {
	if s.ports.Feedback == nil {
		writeMessage(w, http.StatusNotImplemented, "not_implemented", "stats are not enabled")
		return
	}
	limit, ok := intParam(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}
	topics, err := s.ports.Feedback.PopularTopics(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sources := []domain.Source{}
	if s.ports.Refresh != nil {
		sources = append(sources, s.ports.Refresh.Sources()...)
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sources: sources})
}

// decode reads and validates a JSON body. It writes the error response itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("malformed JSON body: %v", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, v, name string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeMessage(w, http.StatusBadRequest, "invalid_request", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
