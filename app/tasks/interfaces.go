package tasks

import (
	"context"

	"github.com/lysyi3m/replybot/app/triage"
)

// PassRunner executes one triage pass.
type PassRunner interface {
	Run(ctx context.Context, job triage.Job) (triage.Summary, error)
}

type TaskSchedulerInterface interface {
	StartInterval(spec IntervalSpec) (TaskInfo, error)
	StopInterval() bool
	IntervalTask() (TaskInfo, bool)
	StartDaily(spec DailySpec) (TaskInfo, error)
	StopDaily(id string) error
	ListDaily() []TaskInfo
	Stop()
}

var _ TaskSchedulerInterface = (*Scheduler)(nil)
var _ PassRunner = (*triage.Runner)(nil)
