package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/replybot/app/audit"
	"github.com/lysyi3m/replybot/app/triage"
)

type TaskType string

const (
	TaskTypeInterval TaskType = "interval"
	TaskTypeDaily    TaskType = "daily"
)

// IntervalTaskID names the single interval slot.
const IntervalTaskID = "fetch_and_reply"

type TaskState string

const (
	StateCreated TaskState = "created"
	StateWaiting TaskState = "waiting"
	StateRunning TaskState = "running"
	StateStopped TaskState = "stopped"
)

// Task is the runtime handle of one scheduled job.
type Task struct {
	ID        string
	Type      TaskType
	Job       triage.Job
	Interval  time.Duration // interval tasks
	StartTime string        // daily tasks, HH:MM
	CreatedAt time.Time

	hour, minute int
	cancel       context.CancelFunc
	ctx          context.Context

	mu          sync.RWMutex
	state       TaskState
	nextRunAt   time.Time
	startedAt   *time.Time
	runs        int
	lastSummary *triage.Summary
	lastError   string
}

// TaskInfo is a point-in-time copy of a task, safe to serialise.
type TaskInfo struct {
	ID                 string          `json:"job_id"`
	Type               TaskType        `json:"type"`
	State              TaskState       `json:"state"`
	PageID             string          `json:"page_id"`
	SheetID            string          `json:"google_sheet_id"`
	SheetName          string          `json:"sheet_name"`
	StartTime          string          `json:"start_time,omitempty"`
	IntervalSeconds    int             `json:"interval_seconds,omitempty"`
	MaxDurationSeconds int             `json:"duration_seconds,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	NextRunAt          *time.Time      `json:"next_run,omitempty"`
	Runs               int             `json:"runs"`
	LastRun            *triage.Summary `json:"last_run,omitempty"`
	LastError          string          `json:"last_error,omitempty"`
}

func newTask(parent context.Context, id string, taskType TaskType, job triage.Job, now time.Time) *Task {
	if id == "" {
		id = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		ID:        id,
		Type:      taskType,
		Job:       job,
		CreatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateCreated,
	}
}

func (t *Task) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Task) setState(state TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateStopped {
		return
	}
	t.state = state
}

func (t *Task) NextRunAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextRunAt
}

func (t *Task) setNextRunAt(next time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextRunAt = next
}

func (t *Task) begin(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = &now
	if t.state != StateStopped {
		t.state = StateRunning
	}
}

func (t *Task) finish(summary triage.Summary, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	t.lastSummary = &summary
	t.lastError = ""
	if err != nil {
		t.lastError = err.Error()
	}
	if t.state != StateStopped {
		t.state = StateWaiting
	}
}

// GetDuration reports how long the current or last pass has been running.
func (t *Task) GetDuration(now time.Time) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.startedAt == nil {
		return 0
	}
	return now.Sub(*t.startedAt)
}

// stop cancels the task's context. Calls after the first are no-ops.
func (t *Task) stop() {
	t.cancel()
	t.mu.Lock()
	t.state = StateStopped
	t.mu.Unlock()
}

func (t *Task) Info() TaskInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info := TaskInfo{
		ID:                 t.ID,
		Type:               t.Type,
		State:              t.state,
		PageID:             t.Job.Page.ID,
		SheetID:            t.Job.Destination.SheetID,
		SheetName:          t.Job.Destination.SheetName,
		StartTime:          t.StartTime,
		IntervalSeconds:    int(t.Interval / time.Second),
		MaxDurationSeconds: int(t.Job.MaxDuration / time.Second),
		CreatedAt:          t.CreatedAt,
		Runs:               t.runs,
		LastError:          t.lastError,
	}
	if !t.nextRunAt.IsZero() {
		next := t.nextRunAt
		info.NextRunAt = &next
	}
	if t.lastSummary != nil {
		summary := *t.lastSummary
		info.LastRun = &summary
	}
	return info
}

// SheetLink returns the browser link of the task's audit destination.
func (info TaskInfo) SheetLink() string {
	return audit.SheetLink(info.SheetID)
}
