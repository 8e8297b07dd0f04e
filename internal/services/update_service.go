package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/providers"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

// UpdateService owns the weekly data-update lifecycle: a single worker
// drains a task queue so at most one update runs at a time, a cron
// entry enqueues the scheduled run, and every run is audited as an
// UpdateTask row.
type UpdateService struct {
	db        *database.DB
	cfg       *config.Config
	logger    *logrus.Logger
	provider  providers.Provider
	usage     *UsageService
	ingestion *IngestionService
	ranking   *RankingService
	cache     *CacheService

	mu       sync.Mutex
	active   string // ID of the pending or running task, "" when idle
	cancels  map[string]context.CancelFunc
	queue    chan string
	stopOnce sync.Once
	stopped  chan struct{}
	cron     *cron.Cron
}

func NewUpdateService(db *database.DB, cfg *config.Config, logger *logrus.Logger,
	provider providers.Provider, usage *UsageService, ingestion *IngestionService,
	ranking *RankingService, cache *CacheService) *UpdateService {
	return &UpdateService{
		db:        db,
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		usage:     usage,
		ingestion: ingestion,
		ranking:   ranking,
		cache:     cache,
		cancels:   make(map[string]context.CancelFunc),
		queue:     make(chan string, 8),
		stopped:   make(chan struct{}),
	}
}

// Start launches the worker goroutine and the weekly cron trigger.
func (s *UpdateService) Start() error {
	go s.worker()

	spec := s.cfg.Snapshot().CronSpec()
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, s.scheduledTrigger); err != nil {
		return fmt.Errorf("failed to register update schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Infof("Update scheduler started (%s)", spec)
	return nil
}

// Reschedule swaps the cron entry for one built from the current
// settings. Called after an admin config change so a new weekly
// schedule takes effect without a restart.
func (s *UpdateService) Reschedule() error {
	if s.cron == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.cron.Entries() {
		s.cron.Remove(entry.ID)
	}
	spec := s.cfg.Snapshot().CronSpec()
	if _, err := s.cron.AddFunc(spec, s.scheduledTrigger); err != nil {
		return fmt.Errorf("failed to register update schedule: %w", err)
	}
	s.logger.Infof("Update schedule changed (%s)", spec)
	return nil
}

func (s *UpdateService) scheduledTrigger() {
	if _, err := s.Trigger(models.TaskTriggerScheduled); err != nil {
		if errors.Is(err, utils.ErrTaskInProgress) {
			s.logger.Warn("Scheduled update skipped; another update is in flight")
			return
		}
		s.logger.Errorf("Failed to enqueue scheduled update: %v", err)
	}
}

// Stop halts the cron trigger, cancels any in-flight task, and waits
// for the worker to drain.
func (s *UpdateService) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			s.cron.Stop()
		}
		s.mu.Lock()
		for _, cancel := range s.cancels {
			cancel()
		}
		s.mu.Unlock()
		close(s.queue)
		<-s.stopped
	})
}

// Trigger enqueues an update run. Only one task may be pending or
// running at a time; a second trigger gets ErrTaskInProgress.
func (s *UpdateService) Trigger(trigger string) (*models.UpdateTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != "" {
		return nil, fmt.Errorf("%w: task %s", utils.ErrTaskInProgress, s.active)
	}

	task := models.UpdateTask{
		ID:      uuid.New().String(),
		Trigger: trigger,
		Status:  models.TaskStatusPending,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to create update task: %w", err)
	}

	s.active = task.ID
	select {
	case s.queue <- task.ID:
	default:
		// The queue only backs up if the worker died; fail loudly
		// instead of leaving a pending row forever.
		s.active = ""
		s.failTask(&task, models.TaskReasonInternal, errors.New("update queue full"))
		return nil, errors.New("update queue full")
	}
	return &task, nil
}

// Cancel requests cancellation of the given task. The worker honors it
// between games and provider calls, never mid-transaction.
func (s *UpdateService) Cancel(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.cancels[taskID]
	if !ok {
		if s.active == taskID {
			// Pending but not yet picked up; the worker will see the
			// cancelled context as soon as it starts.
			return fmt.Errorf("%w: task %s not yet running", utils.ErrConflict, taskID)
		}
		return fmt.Errorf("%w: no running task %s", utils.ErrNotFound, taskID)
	}
	cancel()
	return nil
}

// GetTask loads one task row by ID.
func (s *UpdateService) GetTask(taskID string) (*models.UpdateTask, error) {
	var task models.UpdateTask
	if err := s.db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", utils.ErrNotFound, taskID)
		}
		return nil, err
	}
	return &task, nil
}

// ListTasks returns recent tasks, newest first.
func (s *UpdateService) ListTasks(limit int) ([]models.UpdateTask, error) {
	if limit <= 0 {
		limit = 20
	}
	var tasks []models.UpdateTask
	err := s.db.Order("created_at desc").Limit(limit).Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list update tasks: %w", err)
	}
	return tasks, nil
}

func (s *UpdateService) worker() {
	defer close(s.stopped)
	for taskID := range s.queue {
		s.runTask(taskID)

		s.mu.Lock()
		if s.active == taskID {
			s.active = ""
		}
		delete(s.cancels, taskID)
		s.mu.Unlock()
	}
}

func (s *UpdateService) runTask(taskID string) {
	task, err := s.GetTask(taskID)
	if err != nil {
		s.logger.Errorf("Update worker lost task %s: %v", taskID, err)
		return
	}

	settings := s.cfg.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), settings.TaskTimeout)
	defer cancel()

	s.mu.Lock()
	s.cancels[taskID] = cancel
	s.mu.Unlock()

	now := time.Now().UTC()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now
	if err := s.db.Save(task).Error; err != nil {
		s.logger.Errorf("Failed to mark task %s running: %v", taskID, err)
		return
	}
	s.logger.WithFields(logrus.Fields{"task_id": taskID, "trigger": task.Trigger}).Info("Update task started")

	summary, err := s.execute(ctx, task, settings)
	if err != nil {
		s.failTask(task, reasonFor(err), err)
		return
	}
	s.completeTask(task, summary)
}

var (
	errInactiveSeason = errors.New("outside the active season window")
	errNoCurrentWeek  = errors.New("provider reports no current week")
)

// execute runs the pre-flight checks and the ingestion pass. A
// scheduled trigger outside the active season is an informational
// no-op; a manual one is a failure the caller should see.
func (s *UpdateService) execute(ctx context.Context, task *models.UpdateTask, settings config.Settings) (*RunSummary, error) {
	if !settings.InActiveSeason(time.Now().UTC()) {
		if task.Trigger == models.TaskTriggerScheduled {
			s.logger.Info("Outside the active season window; scheduled update is a no-op")
			return &RunSummary{}, nil
		}
		return nil, errInactiveSeason
	}

	if err := s.usage.CheckQuota(); err != nil {
		return nil, err
	}

	var season models.Season
	if err := s.db.Where("is_active = ?", true).First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active season", utils.ErrNotFound)
		}
		return nil, err
	}

	week, err := s.provider.GetCurrentWeek(ctx, season.Year)
	if err != nil {
		return nil, err
	}
	if week == nil {
		return nil, fmt.Errorf("%w for %d", errNoCurrentWeek, season.Year)
	}

	summary, err := s.ingestion.RunSeason(ctx, &season, *week)
	if err != nil {
		return nil, err
	}

	if err := s.ranking.SaveSnapshot(season.Year, *week); err != nil {
		s.logger.Errorf("Failed to snapshot rankings for %d week %d: %v", season.Year, *week, err)
		summary.Errors++
	}
	s.cache.InvalidateSeason(ctx, season.Year)
	return summary, nil
}

func (s *UpdateService) completeTask(task *models.UpdateTask, summary *RunSummary) {
	now := time.Now().UTC()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	if blob, err := json.Marshal(summary); err == nil {
		task.Result = string(blob)
	}
	if err := s.db.Save(task).Error; err != nil {
		s.logger.Errorf("Failed to complete task %s: %v", task.ID, err)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"task_id":         task.ID,
		"games_processed": summary.GamesProcessed,
		"errors":          summary.Errors,
	}).Info("Update task completed")
}

func (s *UpdateService) failTask(task *models.UpdateTask, reason string, cause error) {
	now := time.Now().UTC()
	task.Status = models.TaskStatusFailed
	task.CompletedAt = &now
	task.Reason = reason
	task.Error = cause.Error()
	if err := s.db.Save(task).Error; err != nil {
		s.logger.Errorf("Failed to record task %s failure: %v", task.ID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"reason":  reason,
	}).Errorf("Update task failed: %v", cause)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, utils.ErrCancelled):
		return models.TaskReasonCancelled
	case errors.Is(err, utils.ErrQuotaExhausted):
		return models.TaskReasonQuotaExhausted
	case errors.Is(err, utils.ErrUpstream), errors.Is(err, utils.ErrUpstreamAuth):
		return models.TaskReasonProviderError
	case errors.Is(err, errInactiveSeason):
		return models.TaskReasonInactiveSeason
	case errors.Is(err, errNoCurrentWeek):
		return models.TaskReasonNoCurrentWeek
	default:
		return models.TaskReasonInternal
	}
}
