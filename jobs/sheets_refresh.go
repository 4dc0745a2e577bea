package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/procureflow/internal/sheets"
)

// TaskSheetsRefresh reloads one sheet snapshot after a write.
const TaskSheetsRefresh = "sheets:refresh"

// SheetsRefreshPayload names the sheet to reload.
type SheetsRefreshPayload struct {
	Sheet sheets.Sheet `json:"sheet"`
}

// NewSheetsRefreshTask builds a refresh task. Tasks for the same sheet
// collapse while one is queued.
func NewSheetsRefreshTask(sheet sheets.Sheet) (*asynq.Task, error) {
	if !sheet.Valid() {
		return nil, fmt.Errorf("jobs: %w: %q", sheets.ErrUnknownSheet, sheet)
	}
	body, err := json.Marshal(SheetsRefreshPayload{Sheet: sheet})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSheetsRefresh, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Refresher reloads a sheet bypassing its cache.
type Refresher interface {
	Refresh(ctx context.Context, sheet sheets.Sheet) (sheets.Snapshot, error)
}

// SheetsRefreshJob processes TaskSheetsRefresh tasks.
type SheetsRefreshJob struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewSheetsRefreshJob constructs the job.
func NewSheetsRefreshJob(refresher Refresher, logger *slog.Logger) *SheetsRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsRefreshJob{refresher: refresher, logger: logger}
}

// Handle reloads the sheet named in the payload.
func (j *SheetsRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SheetsRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TaskSheetsRefresh, err, asynq.SkipRetry)
	}
	if !payload.Sheet.Valid() {
		return fmt.Errorf("%s: unknown sheet %q: %w", TaskSheetsRefresh, payload.Sheet, asynq.SkipRetry)
	}
	snap, err := j.refresher.Refresh(ctx, payload.Sheet)
	if err != nil {
		j.logger.Error("refresh sheet", slog.String("sheet", string(payload.Sheet)), slog.Any("error", err))
		return err
	}
	j.logger.Info("sheet refreshed", slog.String("sheet", string(payload.Sheet)), slog.Int("rows", len(snap.Rows)))
	return nil
}
