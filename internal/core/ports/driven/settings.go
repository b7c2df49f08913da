package driven

import "github.com/Odushhh/tech-support-chatbot/internal/core/domain"

// RankingSettings supplies the current ranking configuration.
// Implementations may change the returned value between calls.
type RankingSettings interface {
	Ranking() domain.RankingConfig
}
