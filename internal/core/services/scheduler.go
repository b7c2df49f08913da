package services

import (
	"context"
	"sync"
	"time"

	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driving"
	"github.com/Odushhh/tech-support-chatbot/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// defaultTick is how often the scheduler looks for due tasks.
const defaultTick = time.Minute

// Scheduler runs one refresh task per source on a fixed interval.
// Task timing is persisted so intervals survive restarts.
type Scheduler struct {
	config  domain.SchedulerConfig
	store   driven.SchedulerStore
	refresh driving.RefreshService
	tick    time.Duration

	mu      sync.Mutex
	running bool
	active  map[string]bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	refresh driving.RefreshService,
) *Scheduler {
	return &Scheduler{
		config:  config,
		store:   store,
		refresh: refresh,
		tick:    defaultTick,
		active:  make(map[string]bool),
	}
}

// SetTick changes how often due tasks are checked.
func (s *Scheduler) SetTick(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled. Refreshes run under their own context, cancelled on Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Info("Scheduler disabled")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	stopCh := make(chan struct{})
	s.running = true
	s.stopCh = stopCh
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.initialiseTasks(runCtx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(runCtx, stopCh)
}

// Stop cancels running refreshes and waits for them to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures a task exists for every configured source.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, source := range s.refresh.Sources() {
		if err := s.ensureTask(ctx, source); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates a task, or updates its interval if the configuration changed.
// A new task is due immediately so a fresh install fills its index on startup.
func (s *Scheduler) ensureTask(ctx context.Context, source domain.Source) error {
	id := domain.RefreshTaskID(source)
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Source:   source,
			Interval: s.config.Interval,
			Enabled:  true,
		}
	} else if task.Interval != s.config.Interval {
		task.Interval = s.config.Interval
		task.NextRun = time.Now().Add(s.config.Interval)
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return nil
		case <-ctx.Done():
			select {
			case <-stopCh:
				return nil
			default:
			}
			_ = s.Stop()
			return ctx.Err()
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks starts every enabled task whose NextRun has passed.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	configured := make(map[domain.Source]bool)
	for _, source := range s.refresh.Sources() {
		configured[source] = true
	}

	now := time.Now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled || !configured[task.Source] || task.NextRun.After(now) {
			continue
		}
		s.runTask(ctx, &task)
	}
}

// runTask refreshes one source in the background. A task still running from
// the previous tick is not started again.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.active[task.ID] || !s.running {
		s.mu.Unlock()
		return
	}
	s.active[task.ID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, task.ID)
			s.mu.Unlock()
		}()

		started := time.Now()
		result, err := s.refresh.RefreshSource(ctx, task.Source)
		if err != nil && ctx.Err() != nil {
			// Stopped mid-run; the task stays due for the next start.
			return
		}

		task.LastRun = started
		task.NextRun = time.Now().Add(task.Interval)
		if err != nil {
			task.LastError = err.Error()
			logger.Warn("scheduler: %s failed: %v", task.ID, err)
		} else {
			task.LastError = ""
			logger.Debug("scheduler: %s upserted %d documents", task.ID, result.Upserted)
		}

		if saveErr := s.store.SaveTask(context.WithoutCancel(ctx), task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
	}()
}
