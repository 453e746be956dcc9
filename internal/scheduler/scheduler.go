// Package scheduler runs named background tasks on gocron with per-task
// single flight and run bookkeeping for the admin API.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// MinInterval is the shortest period an interval task may run at.
const MinInterval = 60 * time.Second

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskRunning    = errors.New("task is already running")
	ErrTaskRegistered = errors.New("task already registered")
)

// TaskFunc is the body of a task. ctx is canceled when the scheduler stops.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes a task. Interval tasks use Interval, cron tasks use
// Cron.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Interval    time.Duration
	Cron        string // "0 0 * * *" for midnight daily
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo is a snapshot of a task for API responses.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Interval    string     `json:"interval,omitempty"`
	Cron        string     `json:"cron,omitempty"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	Running     bool       `json:"running"`
	Runs        int        `json:"runs"`
}

// task holds one registered task and its run history.
type task struct {
	config  TaskConfig
	job     gocron.Job
	running atomic.Bool

	mu        sync.Mutex
	lastRun   time.Time
	lastError string
	runs      int
}

func (t *task) finish(started time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRun = started
	t.runs++
	t.lastError = ""
	if err != nil {
		t.lastError = err.Error()
	}
}

func (t *task) snapshot() TaskInfo {
	t.mu.Lock()
	info := TaskInfo{
		ID:          t.config.ID,
		Name:        t.config.Name,
		Description: t.config.Description,
		Cron:        t.config.Cron,
		LastError:   t.lastError,
		Runs:        t.runs,
	}
	if !t.lastRun.IsZero() {
		last := t.lastRun
		info.LastRun = &last
	}
	t.mu.Unlock()

	info.Running = t.running.Load()
	if t.config.Interval > 0 {
		info.Interval = t.config.Interval.String()
	}
	if next, err := t.job.NextRun(); err == nil && !next.IsZero() {
		info.NextRun = &next
	}
	return info
}

// Scheduler runs registered tasks on their schedules and on demand.
type Scheduler struct {
	cron   gocron.Scheduler
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*task

	ctx    context.Context
	cancel context.CancelFunc
	manual sync.WaitGroup
}

// New creates a scheduler. Tasks run only after Start.
func New(logger zerolog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// EffectiveInterval applies the MinInterval floor.
func EffectiveInterval(d time.Duration) time.Duration {
	return max(MinInterval, d)
}

// RegisterIntervalTask registers a task that runs every interval, floored at
// MinInterval. A run is never started while the previous one is in flight.
func (s *Scheduler) RegisterIntervalTask(config TaskConfig) error {
	config.Interval = EffectiveInterval(config.Interval)
	config.Cron = ""
	return s.register(config, gocron.DurationJob(config.Interval))
}

// RegisterTask registers a cron-scheduled task.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	if config.Cron == "" {
		return fmt.Errorf("task %q: cron expression is required", config.ID)
	}
	config.Interval = 0
	return s.register(config, gocron.CronJob(config.Cron, false))
}

func (s *Scheduler) register(config TaskConfig, def gocron.JobDefinition) error {
	if config.Func == nil {
		return fmt.Errorf("task %q: func is required", config.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("%w: %q", ErrTaskRegistered, config.ID)
	}

	t := &task{config: config}
	opts := []gocron.JobOption{
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if config.RunOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := s.cron.NewJob(def, gocron.NewTask(func() { s.execute(t) }), opts...)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", config.ID, err)
	}
	t.job = job
	s.tasks[config.ID] = t

	evt := s.logger.Info().
		Str("id", config.ID).
		Str("name", config.Name).
		Bool("runOnStart", config.RunOnStart)
	if config.Interval > 0 {
		evt = evt.Dur("interval", config.Interval)
	} else {
		evt = evt.Str("cron", config.Cron)
	}
	evt.Msg("Registered task")
	return nil
}

// execute runs t once unless it is already running.
func (s *Scheduler) execute(t *task) {
	if !t.running.CompareAndSwap(false, true) {
		s.logger.Debug().Str("id", t.config.ID).Msg("Task still running, skipped")
		return
	}
	defer t.running.Store(false)

	log := s.logger.With().Str("id", t.config.ID).Str("name", t.config.Name).Logger()
	started := time.Now()
	log.Info().Msg("Starting task")

	err := s.call(t.config)
	t.finish(started, err)

	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(started)).Msg("Task failed")
		return
	}
	log.Info().Dur("duration", time.Since(started)).Msg("Task completed")
}

// call runs the task body, converting a panic into an error so the
// schedule keeps running.
func (s *Scheduler) call(config TaskConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("id", config.ID).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Task panicked")
			err = fmt.Errorf("task %q panicked: %v", config.ID, r)
		}
	}()
	return config.Func(s.ctx)
}

// Start starts the gocron scheduler. Tasks registered with RunOnStart run
// immediately.
func (s *Scheduler) Start() error {
	s.logger.Info().Int("tasks", len(s.ListTasks())).Msg("Starting scheduler")
	s.cron.Start()
	return nil
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	s.cancel()
	err := s.cron.Shutdown()
	s.manual.Wait()
	return err
}

// RunNow starts a task outside its schedule.
func (s *Scheduler) RunNow(taskID string) error {
	t, err := s.lookup(taskID)
	if err != nil {
		return err
	}
	if t.running.Load() {
		return fmt.Errorf("%w: %q", ErrTaskRunning, taskID)
	}

	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		s.execute(t)
	}()
	return nil
}

// ListTasks returns all registered tasks, sorted by ID.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		infos = append(infos, t.snapshot())
	}
	s.mu.RUnlock()

	slices.SortFunc(infos, func(a, b TaskInfo) int { return cmp.Compare(a.ID, b.ID) })
	return infos
}

// GetTask returns one task.
func (s *Scheduler) GetTask(taskID string) (*TaskInfo, error) {
	t, err := s.lookup(taskID)
	if err != nil {
		return nil, err
	}
	info := t.snapshot()
	return &info, nil
}

func (s *Scheduler) lookup(taskID string) (*task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	return t, nil
}
