// Package triage runs one pass over a page: it walks posts and comments
// newest-first, filters them and replies where the classifier allows.
package triage

import (
	"context"
	"time"

	"github.com/lysyi3m/replybot/app/audit"
	"github.com/lysyi3m/replybot/app/reply"
	"github.com/lysyi3m/replybot/app/social"
)

type Platform interface {
	ListPosts(ctx context.Context, pageID, accessToken string) ([]social.Post, error)
	ListComments(ctx context.Context, postID, accessToken string) ([]social.Comment, error)
	PostReply(ctx context.Context, accessToken, targetCommentID, text string) (string, error)
	ReplyAuthorNames(ctx context.Context, commentID, accessToken string) ([]string, error)
	PageName(ctx context.Context, pageID, accessToken string) (string, error)
}

type PresetMatcher interface {
	Match(comment string) (string, bool)
}

type Classifier interface {
	Classify(ctx context.Context, in reply.Input) reply.Decision
}

type Blacklist interface {
	IsBlocked(authorID, authorName string) bool
}

type Page struct {
	ID          string `json:"page_id"`
	AccessToken string `json:"access_token"`
}

// Job is the input of one pass. A zero MaxDuration means no cap.
type Job struct {
	Page        Page
	Destination audit.Destination
	MaxDuration time.Duration
}

type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopDeadline  StopReason = "deadline"
	StopStopped   StopReason = "stopped"
	StopFailed    StopReason = "failed"
)

// Comment outcomes, used as Summary.Skipped keys and metric labels.
const (
	OutcomeReplied          = "replied"
	OutcomeSuppressed       = "suppressed"
	OutcomeDuplicate        = "duplicate"
	OutcomeBlacklisted      = "blacklisted"
	OutcomeAudited          = "already_audited"
	OutcomeSelfReplied      = "self_replied"
	OutcomeReplyCheckFailed = "reply_check_failed"
	OutcomeDeliveryFailed   = "delivery_failed"
)

type Summary struct {
	PageID        string         `json:"page_id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	PostsScanned  int            `json:"posts_scanned"`
	PostsSkipped  int            `json:"posts_skipped"`
	PostsFailed   int            `json:"posts_failed"`
	CommentsSeen  int            `json:"comments_seen"`
	Replied       int            `json:"replied"`
	Suppressed    int            `json:"suppressed"`
	AuditFailures int            `json:"audit_failures"`
	Skipped       map[string]int `json:"skipped"`
	StopReason    StopReason     `json:"stop_reason"`
}

// RunState is the memory of a single pass. It is never shared between passes.
type RunState struct {
	StartedAt time.Time
	Deadline  time.Time // zero when the pass is uncapped
	handled   map[string]struct{}
}

func NewRunState(start time.Time, maxDuration time.Duration) *RunState {
	s := &RunState{
		StartedAt: start,
		handled:   make(map[string]struct{}),
	}
	if maxDuration > 0 {
		s.Deadline = start.Add(maxDuration)
	}
	return s
}

// MarkHandled records a raw comment id as done for this pass.
func (s *RunState) MarkHandled(commentID string) {
	s.handled[commentID] = struct{}{}
}

func (s *RunState) Handled(commentID string) bool {
	_, ok := s.handled[commentID]
	return ok
}

func (s *RunState) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && !now.Before(s.Deadline)
}
