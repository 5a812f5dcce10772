package api

import (
	"encoding/json"
	"time"

	"github.com/lysyi3m/replybot/app/blacklist"
	"github.com/lysyi3m/replybot/app/database"
	"github.com/lysyi3m/replybot/app/reply"
	"github.com/lysyi3m/replybot/app/tasks"
)

const defaultSheetName = "Sheet1"

type Handler struct {
	blacklist    *blacklist.Registry
	presets      *reply.Presets
	instructions *reply.Instructions
	scheduler    tasks.TaskSchedulerInterface
	replies      database.ReplyRepository
	location     *time.Location
	version      string
	now          func() time.Time
}

type BlacklistRequest struct {
	Users []blacklist.Entry `json:"users" binding:"required"`
}

type BlacklistClearRequest struct {
	ClearAll bool `json:"clear_all"`
}

type InstructionsRequest struct {
	AdditionalInstructions string `json:"additional_instructions"`
}

type HeartbeatRequest struct {
	Timestamp string `json:"timestamp" binding:"required"`
}

type PageConfig struct {
	PageID      string `json:"page_id" binding:"required"`
	AccessToken string `json:"access_token" binding:"required"`
}

type GoogleCredentials struct {
	Credentials json.RawMessage `json:"credentials" binding:"required"`
	SheetName   string          `json:"sheet_name"`
}

type SchedulerRequest struct {
	Config            PageConfig        `json:"config"`
	IntervalSeconds   int               `json:"interval_seconds" binding:"required"`
	GoogleSheetID     string            `json:"google_sheet_id" binding:"required"`
	GoogleCredentials GoogleCredentials `json:"google_credentials"`
	StopTimeAfter     *int              `json:"stop_time_after"`
}

type DailySchedulerRequest struct {
	Config            PageConfig        `json:"config"`
	StartTime         string            `json:"start_time" binding:"required"`
	DurationSeconds   int               `json:"duration_seconds"`
	GoogleSheetID     string            `json:"google_sheet_id" binding:"required"`
	GoogleCredentials GoogleCredentials `json:"google_credentials"`
}
