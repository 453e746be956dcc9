package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/linker"
	"github.com/plexlinker/plexlinker/internal/scheduler"
)

const LinkTaskID = "link-pass"

// Runner is satisfied by jobs.LinkJob.
type Runner interface {
	Run(ctx context.Context) (*linker.PassReport, error)
}

// LinkTask adapts a link job to the scheduler's task signature.
type LinkTask struct {
	job    Runner
	logger zerolog.Logger
}

// NewLinkTask creates a new link task.
func NewLinkTask(job Runner, logger zerolog.Logger) *LinkTask {
	return &LinkTask{
		job:    job,
		logger: logger.With().Str("task", LinkTaskID).Logger(),
	}
}

// Run executes one pass. A refused run (another pass holds the marker) is
// not an error.
func (t *LinkTask) Run(ctx context.Context) error {
	report, err := t.job.Run(ctx)
	if err != nil {
		return err
	}
	if report == nil {
		t.logger.Debug().Msg("Pass already running, skipped")
		return nil
	}
	if report.Skipped {
		t.logger.Debug().Str("reason", report.SkipReason).Msg("Pass skipped")
	}
	return nil
}

// RegisterLinkTask registers the periodic link pass. It runs on start and
// then every interval, floored at scheduler.MinInterval.
func RegisterLinkTask(sched *scheduler.Scheduler, job Runner, interval time.Duration, logger zerolog.Logger) error {
	task := NewLinkTask(job, logger)

	return sched.RegisterIntervalTask(scheduler.TaskConfig{
		ID:          LinkTaskID,
		Name:        "Link Pass",
		Description: "Links mapped movies into show folders as season 0 specials",
		Interval:    interval,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
