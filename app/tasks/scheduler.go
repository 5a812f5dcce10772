package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lysyi3m/replybot/app/monitoring"
	"github.com/lysyi3m/replybot/app/triage"
)

var (
	ErrInvalidStartTime = errors.New("invalid start_time format, use HH:MM (24-hour format)")
	ErrInvalidInterval  = errors.New("interval must be positive")
	ErrInvalidDuration  = errors.New("duration must not be negative")
	ErrTaskNotFound     = errors.New("job not found")
	ErrSchedulerStopped = errors.New("scheduler is stopped")
)

const DefaultCooldown = time.Minute

type IntervalSpec struct {
	Job      triage.Job
	Interval time.Duration
}

type DailySpec struct {
	Job       triage.Job
	StartTime string // HH:MM in the scheduler's timezone
}

// Scheduler owns the interval slot and any number of daily tasks. Every
// task runs on its own goroutine with its own cancellation.
type Scheduler struct {
	runner   PassRunner
	location *time.Location
	cooldown time.Duration
	metrics  *monitoring.Metrics
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	interval *Task
	daily    map[string]*Task
}

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(runner PassRunner, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runner:   runner,
		location: time.UTC,
		cooldown: DefaultCooldown,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		daily:    make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Location() *time.Location {
	return s.location
}

// StartInterval replaces any existing interval task. The first pass starts
// immediately in the background.
func (s *Scheduler) StartInterval(spec IntervalSpec) (TaskInfo, error) {
	if spec.Interval <= 0 {
		return TaskInfo{}, ErrInvalidInterval
	}
	if spec.Job.MaxDuration < 0 {
		return TaskInfo{}, ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return TaskInfo{}, ErrSchedulerStopped
	}

	if s.interval != nil {
		slog.Info("Replacing interval job", "id", s.interval.ID)
		s.interval.stop()
	}

	task := newTask(s.ctx, IntervalTaskID, TaskTypeInterval, spec.Job, s.now())
	task.Interval = spec.Interval
	task.setNextRunAt(s.now())
	s.interval = task
	s.metrics.SetActiveJobs(string(TaskTypeInterval), 1)

	s.wg.Add(1)
	go s.runInterval(task)

	slog.Info("Interval job started", "page_id", spec.Job.Page.ID, "interval", spec.Interval, "max_duration", spec.Job.MaxDuration)
	return task.Info(), nil
}

// StopInterval cancels the interval task and reports whether one existed.
// A pass in flight ends at its next checkpoint.
func (s *Scheduler) StopInterval() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval == nil {
		return false
	}
	s.interval.stop()
	slog.Info("Interval job stopped", "id", s.interval.ID)
	s.interval = nil
	s.metrics.SetActiveJobs(string(TaskTypeInterval), 0)
	return true
}

func (s *Scheduler) IntervalTask() (TaskInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval == nil {
		return TaskInfo{}, false
	}
	return s.interval.Info(), true
}

// StartDaily registers a task that runs one capped pass every day at the
// given wall-clock time.
func (s *Scheduler) StartDaily(spec DailySpec) (TaskInfo, error) {
	hour, minute, err := ParseStartTime(spec.StartTime)
	if err != nil {
		return TaskInfo{}, err
	}
	if spec.Job.MaxDuration < 0 {
		return TaskInfo{}, ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return TaskInfo{}, ErrSchedulerStopped
	}

	task := newTask(s.ctx, "", TaskTypeDaily, spec.Job, s.now())
	task.StartTime = spec.StartTime
	task.hour, task.minute = hour, minute
	task.setNextRunAt(NextDailyRun(s.now(), hour, minute, s.location))
	s.daily[task.ID] = task
	s.metrics.SetActiveJobs(string(TaskTypeDaily), len(s.daily))

	s.wg.Add(1)
	go s.runDaily(task)

	slog.Info("Daily job scheduled", "id", task.ID, "page_id", spec.Job.Page.ID, "start_time", spec.StartTime, "next_run", task.NextRunAt())
	return task.Info(), nil
}

func (s *Scheduler) StopDaily(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.daily[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	task.stop()
	delete(s.daily, id)
	s.metrics.SetActiveJobs(string(TaskTypeDaily), len(s.daily))

	slog.Info("Daily job stopped", "id", id)
	return nil
}

// ListDaily returns the daily tasks ordered by creation time.
func (s *Scheduler) ListDaily() []TaskInfo {
	s.mu.Lock()
	infos := make([]TaskInfo, 0, len(s.daily))
	for _, task := range s.daily {
		infos = append(infos, task.Info())
	}
	s.mu.Unlock()

	slices.SortFunc(infos, func(a, b TaskInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return infos
}

// Stop cancels every task and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	if s.interval != nil {
		s.interval.stop()
		s.interval = nil
	}
	for id, task := range s.daily {
		task.stop()
		delete(s.daily, id)
	}
	s.metrics.SetActiveJobs(string(TaskTypeInterval), 0)
	s.metrics.SetActiveJobs(string(TaskTypeDaily), 0)
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) runInterval(task *Task) {
	defer s.wg.Done()

	s.runPass(task)

	// Ticks that arrive while a pass is running are dropped by the ticker.
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		task.setNextRunAt(s.now().Add(task.Interval))
		select {
		case <-task.ctx.Done():
			return
		case <-ticker.C:
			if task.ctx.Err() != nil {
				return
			}
			s.runPass(task)
		}
	}
}

func (s *Scheduler) runDaily(task *Task) {
	defer s.wg.Done()

	next := task.NextRunAt()
	for {
		task.setNextRunAt(next)
		task.setState(StateWaiting)
		slog.Debug("Daily job waiting", "id", task.ID, "next_run", next)

		if !s.sleep(task.ctx, next.Sub(s.now())) {
			return
		}

		if err := s.runPass(task); err != nil {
			slog.Error("Daily job execution failed, cooling down", "id", task.ID, "cooldown", s.cooldown, "error", err)
			if !s.sleep(task.ctx, s.cooldown) {
				return
			}
		}

		next = NextDailyRun(s.now(), task.hour, task.minute, s.location)
	}
}

func (s *Scheduler) runPass(task *Task) error {
	task.begin(s.now())
	slog.Info("Job execution started", "id", task.ID, "type", string(task.Type), "page_id", task.Job.Page.ID)

	summary, err := s.runner.Run(task.ctx, task.Job)
	task.finish(summary, err)

	if err != nil {
		slog.Error("Job execution failed", "id", task.ID, "duration", task.GetDuration(s.now()), "error", err)
		return err
	}
	slog.Info("Job execution finished", "id", task.ID, "duration", task.GetDuration(s.now()), "stop_reason", summary.StopReason, "replied", summary.Replied)
	return nil
}

// sleep waits for d or until ctx is done and reports whether the wait ran
// to completion.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ParseStartTime validates a 24-hour HH:MM string.
func ParseStartTime(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, value)
	}
	return t.Hour(), t.Minute(), nil
}

// NextDailyRun returns the next occurrence of hour:minute in loc strictly
// after now. A time equal to now rolls over to the following day.
func NextDailyRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
