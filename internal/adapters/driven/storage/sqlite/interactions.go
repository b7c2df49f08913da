package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

const defaultTopicLimit = 10

// interactionStore implements driven.InteractionStore.
type interactionStore struct {
	store *Store
}

var _ driven.InteractionStore = (*interactionStore)(nil)

// RecordInteraction appends an interaction and its topics.
func (s *interactionStore) RecordInteraction(ctx context.Context, in domain.Interaction) error {
	if in.ID == "" {
		return fmt.Errorf("%w: interaction id is empty", domain.ErrInvalidInput)
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	cited, err := json.Marshal(nonNilStrings(in.CitedDocuments))
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interactions (id, query, intent, confidence, fallback_used, cached, cited, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.Query, string(in.Intent), in.Confidence, boolToInt(in.FallbackUsed),
		boolToInt(in.Cached), string(cited), in.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving interaction: %w", err)
	}

	for _, topic := range in.Topics {
		if topic == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO interaction_topics (interaction_id, topic) VALUES (?, ?)",
			in.ID, topic); err != nil {
			return fmt.Errorf("saving topic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing interaction: %w", err)
	}
	return nil
}

// GetInteraction returns one interaction or domain.ErrNotFound.
func (s *interactionStore) GetInteraction(ctx context.Context, id string) (*domain.Interaction, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, query, intent, confidence, fallback_used, cached, cited, created_at
		FROM interactions WHERE id = ?
	`, id)

	var in domain.Interaction
	var intent, cited, createdAt string
	var fallback, cached int
	if err := row.Scan(&in.ID, &in.Query, &intent, &in.Confidence, &fallback, &cached, &cited, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning interaction: %w", err)
	}
	in.Intent = domain.Intent(intent)
	in.FallbackUsed = fallback == 1
	in.Cached = cached == 1
	in.CreatedAt = parseNullableTime(sql.NullString{String: createdAt, Valid: true})
	if err := json.Unmarshal([]byte(cited), &in.CitedDocuments); err != nil {
		return nil, fmt.Errorf("unmarshalling citations: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT topic FROM interaction_topics WHERE interaction_id = ? ORDER BY rowid", id)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		in.Topics = append(in.Topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topics: %w", err)
	}
	return &in, nil
}

// RecordFeedback stores feedback for an existing interaction.
func (s *interactionStore) RecordFeedback(ctx context.Context, fb domain.Feedback) error {
	if fb.ID == "" || fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("%w: feedback needs an id and a rating from 1 to 5", domain.ErrInvalidInput)
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	var exists int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM interactions WHERE id = ?", fb.InteractionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking interaction: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("interaction %q: %w", fb.InteractionID, domain.ErrNotFound)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO feedback (id, interaction_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, fb.ID, fb.InteractionID, fb.Rating, fb.Comment, fb.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	return nil
}

// Stats aggregates the interaction log.
func (s *interactionStore) Stats(ctx context.Context) (domain.InteractionStats, error) {
	stats := domain.InteractionStats{ByIntent: make(map[domain.Intent]int)}

	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(fallback_used), 0), COALESCE(SUM(cached), 0), COALESCE(AVG(confidence), 0)
		FROM interactions
	`).Scan(&stats.TotalQueries, &stats.FallbackCount, &stats.CachedCount, &stats.AverageConfidence)
	if err != nil {
		return stats, fmt.Errorf("aggregating interactions: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, "SELECT intent, COUNT(*) FROM interactions GROUP BY intent")
	if err != nil {
		return stats, fmt.Errorf("counting intents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var intent string
		var n int
		if err := rows.Scan(&intent, &n); err != nil {
			return stats, fmt.Errorf("scanning intent count: %w", err)
		}
		stats.ByIntent[domain.Intent(intent)] = n
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterating intent counts: %w", err)
	}

	err = s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback",
	).Scan(&stats.FeedbackCount, &stats.AverageRating)
	if err != nil {
		return stats, fmt.Errorf("aggregating feedback: %w", err)
	}
	return stats, nil
}

// PopularTopics returns the most frequent topics, ties by name.
func (s *interactionStore) PopularTopics(ctx context.Context, limit int) ([]domain.TopicCount, error) {
	if limit <= 0 {
		limit = defaultTopicLimit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT topic, COUNT(*) AS n FROM interaction_topics
		GROUP BY topic ORDER BY n DESC, topic LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.TopicCount //nolint:prealloc // size unknown from query
	for rows.Next() {
		var tc domain.TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		topics = append(topics, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topics: %w", err)
	}
	return topics, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
