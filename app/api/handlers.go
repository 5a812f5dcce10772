package api

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/replybot/app/audit"
	"github.com/lysyi3m/replybot/app/blacklist"
	"github.com/lysyi3m/replybot/app/database"
	"github.com/lysyi3m/replybot/app/reply"
	"github.com/lysyi3m/replybot/app/settings"
	"github.com/lysyi3m/replybot/app/tasks"
	"github.com/lysyi3m/replybot/app/triage"
)

func NewHandler(stores *settings.Stores, scheduler tasks.TaskSchedulerInterface,
	replies database.ReplyRepository, location *time.Location, version string) *Handler {
	return &Handler{
		blacklist:    stores.Blacklist,
		presets:      stores.Presets,
		instructions: stores.Instructions,
		scheduler:    scheduler,
		replies:      replies,
		location:     cmp.Or(location, time.UTC),
		version:      version,
		now:          time.Now,
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": message})
}

func (h *Handler) UpdateBlacklist(c *gin.Context) {
	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.blacklist.Replace(req.Users); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	users := h.blacklist.List()
	c.JSON(http.StatusOK, gin.H{
		"status":            "success",
		"message":           fmt.Sprintf("Blacklist updated with %d users", len(users)),
		"blacklisted_users": users,
	})
}

func (h *Handler) AddBlacklist(c *gin.Context) {
	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	added, err := h.blacklist.Add(req.Users)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "success",
		"message":           fmt.Sprintf("Added %d users to blacklist", added),
		"blacklisted_users": h.blacklist.List(),
	})
}

func (h *Handler) RemoveBlacklist(c *gin.Context) {
	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	removed, err := h.blacklist.Remove(req.Users)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "success",
		"message":           fmt.Sprintf("Removed %d users from blacklist", removed),
		"blacklisted_users": h.blacklist.List(),
	})
}

func (h *Handler) ClearBlacklist(c *gin.Context) {
	var req BlacklistClearRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.blacklist.Clear(req.ClearAll)
	if errors.Is(err, blacklist.ErrClearNotConfirmed) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":            "error",
			"message":           err.Error(),
			"blacklisted_users": h.blacklist.List(),
		})
		return
	}
	if err != nil {
		slog.Error("Failed to clear blacklist", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to clear blacklist")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "success",
		"message":           fmt.Sprintf("Cleared all %d users from blacklist", count),
		"blacklisted_users": []blacklist.Entry{},
	})
}

func (h *Handler) GetBlacklist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blacklisted_users": h.blacklist.List()})
}

func (h *Handler) SetInstructions(c *gin.Context) {
	var req InstructionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	h.instructions.Set(req.AdditionalInstructions)
	slog.Info("Additional instructions updated", "length", len(req.AdditionalInstructions))

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Additional instructions updated"})
}

func (h *Handler) GetInstructions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"additional_instructions": h.instructions.Get()})
}

// AddPresetReplies upserts a keyword → reply object, keeping the order of
// the keys in the request body.
func (h *Handler) AddPresetReplies(c *gin.Context) {
	items, err := decodePresets(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(items) == 0 {
		respondError(c, http.StatusBadRequest, "No preset data provided")
		return
	}

	added, updated, err := h.presets.Upsert(items)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Empty key or reply detected")
		return
	}

	slog.Info("Preset replies saved", "added", len(added), "updated", len(updated))

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"added":         nonNil(added),
		"updated":       nonNil(updated),
		"total_presets": h.presets.Len(),
	})
}

func (h *Handler) GetPresetReplies(c *gin.Context) {
	presets := h.presets.List()
	c.JSON(http.StatusOK, gin.H{
		"preset_replies": presets,
		"total_presets":  len(presets),
	})
}

func (h *Handler) StartScheduler(c *gin.Context) {
	var req SchedulerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	maxDuration := time.Duration(0)
	if req.StopTimeAfter != nil {
		maxDuration = time.Duration(*req.StopTimeAfter) * time.Second
	}

	job := triage.Job{
		Page:        triage.Page{ID: req.Config.PageID, AccessToken: req.Config.AccessToken},
		Destination: destination(req.GoogleSheetID, req.GoogleCredentials),
		MaxDuration: maxDuration,
	}

	info, err := h.scheduler.StartInterval(tasks.IntervalSpec{
		Job:      job,
		Interval: time.Duration(req.IntervalSeconds) * time.Second,
	})
	if err != nil {
		h.respondSchedulerError(c, err)
		return
	}

	runFor := " until completion"
	if maxDuration > 0 {
		runFor = fmt.Sprintf(" for up to %d seconds", *req.StopTimeAfter)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":                  "success",
		"message":                 fmt.Sprintf("Scheduler started. Each execution will run%s and repeat every %d seconds.", runFor, req.IntervalSeconds),
		"job_id":                  info.ID,
		"interval_seconds":        req.IntervalSeconds,
		"stop_time_after_seconds": req.StopTimeAfter,
		"next_run":                info.NextRunAt,
		"sheet_link":              audit.SheetLink(req.GoogleSheetID),
		"sheet_name":              job.Destination.SheetName,
	})
}

func (h *Handler) StopScheduler(c *gin.Context) {
	if !h.scheduler.StopInterval() {
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "No active scheduler to stop."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Scheduler stopped manually."})
}

func (h *Handler) StartDailyScheduler(c *gin.Context) {
	var req DailySchedulerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	job := triage.Job{
		Page:        triage.Page{ID: req.Config.PageID, AccessToken: req.Config.AccessToken},
		Destination: destination(req.GoogleSheetID, req.GoogleCredentials),
		MaxDuration: time.Duration(req.DurationSeconds) * time.Second,
	}

	info, err := h.scheduler.StartDaily(tasks.DailySpec{Job: job, StartTime: req.StartTime})
	if err != nil {
		h.respondSchedulerError(c, err)
		return
	}

	var nextRun string
	if info.NextRunAt != nil {
		nextRun = info.NextRunAt.In(h.location).Format("2006-01-02 15:04:05 MST")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"message":          fmt.Sprintf("Daily job scheduled at %s (%s), next run at %s", req.StartTime, h.location, nextRun),
		"job_id":           info.ID,
		"start_time":       req.StartTime,
		"timezone":         h.location.String(),
		"next_run":         nextRun,
		"duration_seconds": req.DurationSeconds,
		"sheet_link":       audit.SheetLink(req.GoogleSheetID),
		"sheet_name":       job.Destination.SheetName,
	})
}

func (h *Handler) StopDailyScheduler(c *gin.Context) {
	id := c.Param("job_id")

	if err := h.scheduler.StopDaily(id); err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			respondError(c, http.StatusNotFound, fmt.Sprintf("No daily job with id %s", id))
			return
		}
		slog.Error("Failed to stop daily job", "id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to stop daily job")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": fmt.Sprintf("Daily job %s stopped", id)})
}

func (h *Handler) ListDailyJobs(c *gin.Context) {
	jobs := h.scheduler.ListDaily()
	c.JSON(http.StatusOK, gin.H{
		"jobs":     jobs,
		"count":    len(jobs),
		"timezone": h.location.String(),
	})
}

func (h *Handler) ListReplies(c *gin.Context) {
	if h.replies == nil {
		respondError(c, http.StatusServiceUnavailable, "reply ledger is not configured")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, 500)
	}

	replies, err := h.replies.GetRecentReplies(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_replies", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load replies")
		return
	}

	c.JSON(http.StatusOK, gin.H{"replies": nonNil(replies), "count": len(replies)})
}

func (h *Handler) GetSheetLink(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sheet_link": audit.SheetLink(c.Param("sheet_id"))})
}

func (h *Handler) Heartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("Received heartbeat", "timestamp", req.Timestamp)
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"message":     "Heartbeat received",
		"server_time": h.now().Format(time.RFC3339),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	_, intervalActive := h.scheduler.IntervalTask()

	health := map[string]interface{}{
		"status":            "ok",
		"version":           h.version,
		"timestamp":         h.now().In(h.location).Format(time.RFC3339),
		"blacklisted_users": h.blacklist.Len(),
		"preset_replies":    h.presets.Len(),
		"interval_job":      intervalActive,
		"daily_jobs":        len(h.scheduler.ListDaily()),
	}

	if h.replies != nil {
		if count, err := h.replies.GetReplyCount(c.Request.Context()); err == nil {
			health["replies_recorded"] = count
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) respondSchedulerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tasks.ErrInvalidStartTime),
		errors.Is(err, tasks.ErrInvalidInterval),
		errors.Is(err, tasks.ErrInvalidDuration):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, tasks.ErrSchedulerStopped):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("Failed to start job", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to start job")
	}
}

func destination(sheetID string, creds GoogleCredentials) audit.Destination {
	return audit.Destination{
		SheetID:     sheetID,
		SheetName:   cmp.Or(creds.SheetName, defaultSheetName),
		Credentials: creds.Credentials,
	}
}

// decodePresets reads a JSON object of keyword → reply pairs in document order.
func decodePresets(body io.Reader) ([]reply.Preset, error) {
	dec := json.NewDecoder(body)

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected a JSON object of keyword to reply pairs")
	}

	var items []reply.Preset
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		key, _ := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("reply for %q must be a string", key)
		}
		items = append(items, reply.Preset{Keyword: key, Reply: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return items, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
