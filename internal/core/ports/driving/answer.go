package driving

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// AnswerService answers free-text support questions.
type AnswerService interface {
	// Ask runs the full pipeline for one question.
	// Fails with domain.ErrQueryTooShort for unusable input and
	// domain.ErrSourceUnavailable when every source is down and nothing is cached.
	Ask(ctx context.Context, text string) (*domain.Answer, error)
}
