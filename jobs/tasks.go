package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/balanca-pos/balanca/internal/ledger/depreciation"
	"github.com/balanca-pos/balanca/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationRun posts one depreciation period for every active plan.
	TaskDepreciationRun = "depreciation:run"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// DepreciationRunPayload selects the period to post. A zero year or month
// means the month before the task fires, which is what the monthly cron wants.
type DepreciationRunPayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewDepreciationRunTask constructs the period-post task.
func NewDepreciationRunTask(payload DepreciationRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, data), nil
}

// DepreciationRunner posts one period for every active plan.
type DepreciationRunner interface {
	RunAllForPeriod(ctx context.Context, year, month int) (posted, duplicates int, err error)
}

var _ DepreciationRunner = (*depreciation.Service)(nil)

// DepreciationJob runs scheduled depreciation postings.
type DepreciationJob struct {
	service DepreciationRunner
	logger  *slog.Logger
	now     func() time.Time
}

// NewDepreciationJob constructs the job.
func NewDepreciationJob(service DepreciationRunner, logger *slog.Logger) *DepreciationJob {
	return &DepreciationJob{service: service, logger: logger, now: time.Now}
}

// Handle processes TaskDepreciationRun tasks.
func (j *DepreciationJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DepreciationRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	year, month := payload.Year, payload.Month
	if year == 0 || month == 0 {
		prev := j.now().UTC().AddDate(0, -1, 0)
		year, month = prev.Year(), int(prev.Month())
	}
	posted, duplicates, err := j.service.RunAllForPeriod(ctx, year, month)
	if err != nil {
		j.logger.Error("depreciation run",
			slog.Int("year", year), slog.Int("month", month), slog.Any("error", err))
		return err
	}
	j.logger.Info("depreciation run complete",
		slog.Int("year", year), slog.Int("month", month),
		slog.Int("posted", posted), slog.Int("duplicates", duplicates))
	return nil
}

// IdempotencyCleanupJob prunes keys past the retention window.
type IdempotencyCleanupJob struct {
	store     *shared.IdempotencyStore
	retention time.Duration
	logger    *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &IdempotencyCleanupJob{store: store, retention: retention, logger: logger}
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if err := j.store.Cleanup(ctx, j.retention); err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	j.logger.Info("idempotency cleanup complete")
	return nil
}
