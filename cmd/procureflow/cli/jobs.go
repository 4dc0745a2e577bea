// Package cli holds operator commands for the procureflow binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/procureflow/internal/sheets"
	"github.com/odyssey-erp/procureflow/jobs"
)

type taskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    taskQueue
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers for the given Redis connection.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	if c.client != nil {
		err = errors.Join(err, c.client.Close())
	}
	return err
}

// Refresh enqueues an immediate refresh of each named sheet, or all sheets
// when none are named.
func (c *JobsCLI) Refresh(ctx context.Context, names ...string) ([]*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	targets := make([]sheets.Sheet, 0, len(names))
	for _, name := range names {
		targets = append(targets, sheets.Sheet(name))
	}
	if len(targets) == 0 {
		targets = sheets.All()
	}
	infos := make([]*asynq.TaskInfo, 0, len(targets))
	for _, sheet := range targets {
		task, err := jobs.NewSheetsRefreshTask(sheet)
		if err != nil {
			return infos, err
		}
		info, err := c.client.EnqueueContext(ctx, task)
		if err != nil {
			return infos, fmt.Errorf("jobs cli: enqueue %s: %w", sheet, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// Run dispatches "stats" or "refresh [SHEET...]".
func (c *JobsCLI) Run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: jobs stats | jobs refresh [SHEET...]")
	}
	switch args[0] {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	case "refresh":
		infos, err := c.Refresh(ctx, args[1:]...)
		for _, info := range infos {
			fmt.Fprintf(out, "queued %s %s\n", info.Type, info.ID)
		}
		return err
	}
	return fmt.Errorf("jobs cli: unknown subcommand %q", args[0])
}
