package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultRotateSchedule rotates the activity log daily at 18:00 local time.
const DefaultRotateSchedule = "0 18 * * *"

// Rotator runs FileLog.Rotate on a cron schedule.
type Rotator struct {
	cron    *cron.Cron
	log     *FileLog
	entryID cron.EntryID
}

// NewRotator schedules rotation of log. An empty schedule uses DefaultRotateSchedule.
func NewRotator(log *FileLog, schedule string) (*Rotator, error) {
	if schedule == "" {
		schedule = DefaultRotateSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid rotation schedule %q: %w", schedule, err)
	}

	r := &Rotator{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		log:  log,
	}

	id, err := r.cron.AddFunc(schedule, r.rotate)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule rotation: %w", err)
	}
	r.entryID = id
	return r, nil
}

func (r *Rotator) rotate() {
	path, err := r.log.Rotate()
	if err != nil {
		slog.Error("activity log rotation failed", "error", err)
		return
	}
	if path != "" {
		slog.Info("activity log rotated", "path", path)
	}
}

// Start begins the schedule in the background.
func (r *Rotator) Start() {
	r.cron.Start()
	slog.Info("activity log rotation scheduled",
		"next_run", r.cron.Entry(r.entryID).Next,
	)
}

// Stop halts the schedule and waits for a running rotation, bounded by ctx.
func (r *Rotator) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
