package driven

import (
	"context"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

// SchedulerStore persists background task state so refresh timing
// survives restarts.
type SchedulerStore interface {
	// GetTask retrieves a task. Returns nil and no error if it does not exist.
	GetTask(ctx context.Context, id string) (*domain.ScheduledTask, error)

	// ListTasks returns every stored task.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask creates or updates a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error
}
