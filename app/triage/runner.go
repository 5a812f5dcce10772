package triage

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lysyi3m/replybot/app/audit"
	"github.com/lysyi3m/replybot/app/monitoring"
	"github.com/lysyi3m/replybot/app/reply"
	"github.com/lysyi3m/replybot/app/social"
)

const DefaultCallTimeout = time.Minute

type Runner struct {
	platform    Platform
	presets     PresetMatcher
	classifier  Classifier
	blacklist   Blacklist
	sink        audit.Sink
	cutoff      time.Time
	callTimeout time.Duration
	metrics     *monitoring.Metrics
	now         func() time.Time
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func WithCallTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner wires a pass runner. Posts created before cutoff are ignored.
func NewRunner(platform Platform, presets PresetMatcher, classifier Classifier, blacklist Blacklist, sink audit.Sink, cutoff time.Time, opts ...Option) *Runner {
	r := &Runner{
		platform:    platform,
		presets:     presets,
		classifier:  classifier,
		blacklist:   blacklist,
		sink:        sink,
		cutoff:      cutoff,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// pass carries the per-execution inputs through the helpers.
type pass struct {
	job      Job
	state    *RunState
	pageName string
	audited  map[string]struct{}
	summary  *Summary
}

// Run executes one pass. Cancelling ctx stops the pass at the next post or
// comment checkpoint; calls already in flight are allowed to finish. An
// error is returned only when the post listing fails.
func (r *Runner) Run(ctx context.Context, job Job) (summary Summary, err error) {
	state := NewRunState(r.now(), job.MaxDuration)
	summary = Summary{
		PageID:    job.Page.ID,
		StartedAt: state.StartedAt,
		Skipped:   make(map[string]int),
	}

	slog.Info("Starting triage pass", "page_id", job.Page.ID, "max_duration", job.MaxDuration)

	defer func() {
		summary.FinishedAt = r.now()
		r.metrics.ObservePass(string(summary.StopReason), summary.FinishedAt.Sub(summary.StartedAt))
	}()

	posts, err := r.listPosts(ctx, job.Page)
	if err != nil {
		summary.StopReason = StopFailed
		slog.Error("Failed to fetch posts", "page_id", job.Page.ID, "error", err)
		return summary, err
	}

	p := &pass{
		job:      job,
		state:    state,
		pageName: r.pageName(ctx, job.Page),
		audited:  r.seed(ctx, job.Destination),
		summary:  &summary,
	}

	for _, post := range posts {
		if reason := r.checkpoint(ctx, state); reason != "" {
			summary.StopReason = reason
			r.logFinished(summary)
			return summary, nil
		}

		if post.CreatedTime.Before(r.cutoff) {
			slog.Debug("Skipping post before cutoff", "post_id", post.ID, "created_time", post.RawCreated)
			summary.PostsSkipped++
			continue
		}
		summary.PostsScanned++

		comments, err := r.listComments(ctx, job.Page, post.ID)
		if err != nil {
			slog.Error("Failed to fetch comments, skipping post", "post_id", post.ID, "error", err)
			summary.PostsFailed++
			continue
		}

		for _, comment := range comments {
			if reason := r.checkpoint(ctx, state); reason != "" {
				summary.StopReason = reason
				r.logFinished(summary)
				return summary, nil
			}

			summary.CommentsSeen++
			outcome := r.handleComment(ctx, p, post, comment)
			r.record(&summary, outcome)
		}
	}

	summary.StopReason = StopCompleted
	r.logFinished(summary)
	return summary, nil
}

func (r *Runner) handleComment(ctx context.Context, p *pass, post social.Post, comment social.Comment) string {
	if p.state.Handled(comment.ID) {
		return OutcomeDuplicate
	}

	if r.blacklist != nil && r.blacklist.IsBlocked(comment.AuthorID, comment.AuthorName) {
		slog.Info("Skipping comment by blacklisted user", "author", comment.AuthorName, "author_id", comment.AuthorID)
		return OutcomeBlacklisted
	}

	target := comment.CompositeID(p.job.Page.ID)
	if _, ok := p.audited[target]; ok {
		p.state.MarkHandled(comment.ID)
		return OutcomeAudited
	}

	names, err := r.replyAuthorNames(ctx, p.job.Page, comment.ID)
	if err != nil {
		slog.Warn("Failed to fetch replies, assuming already replied", "comment_id", comment.ID, "error", err)
		p.state.MarkHandled(comment.ID)
		return OutcomeReplyCheckFailed
	}
	if p.pageName != "" && slices.Contains(names, p.pageName) {
		p.state.MarkHandled(comment.ID)
		return OutcomeSelfReplied
	}

	hint, _ := r.presets.Match(comment.Message)

	decision := r.classify(ctx, reply.Input{
		Comment:       comment.Message,
		Post:          post.Message,
		Hint:          hint,
		AuthorName:    comment.AuthorName,
		AuthorProfile: comment.ProfileLink(),
	})
	if !decision.Deliver() {
		slog.Info("Skipping reply", "comment_id", comment.ID, "author", comment.AuthorName, "reason", decision.Reason)
		return OutcomeSuppressed
	}

	// A failed or timed-out post may still have landed upstream.
	p.state.MarkHandled(comment.ID)
	if _, err := r.postReply(ctx, p.job.Page, target, decision.Text); err != nil {
		slog.Error("Failed to post reply", "comment_id", target, "error", err)
		r.metrics.DeliveryError("post")
		return OutcomeDeliveryFailed
	}

	record := newRecord(post, comment, target, decision.Text)
	if err := r.appendRecord(ctx, p.job.Destination, record); err != nil {
		slog.Error("Failed to store audit record", "comment_id", target, "error", err)
		r.metrics.DeliveryError("audit")
		p.summary.AuditFailures++
	}

	return OutcomeReplied
}

func (r *Runner) record(summary *Summary, outcome string) {
	r.metrics.CommentOutcome(outcome)

	switch outcome {
	case OutcomeReplied:
		summary.Replied++
	case OutcomeSuppressed:
		summary.Suppressed++
	default:
		summary.Skipped[outcome]++
	}
}

func (r *Runner) checkpoint(ctx context.Context, state *RunState) StopReason {
	if ctx.Err() != nil {
		slog.Info("Stopping triage pass early due to manual stop")
		return StopStopped
	}
	if state.Expired(r.now()) {
		slog.Info("Stopping triage pass, time limit reached", "deadline", state.Deadline)
		return StopDeadline
	}
	return ""
}

// seed loads the composite ids already present in the audit destination.
func (r *Runner) seed(ctx context.Context, dest audit.Destination) map[string]struct{} {
	audited := make(map[string]struct{})
	if r.sink == nil {
		return audited
	}

	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	if err := r.sink.EnsureSchema(callCtx, dest); err != nil {
		slog.Error("Failed to prepare audit destination", "sheet", dest.SheetName, "error", err)
	}

	ids, err := r.sink.RepliedCommentIDs(callCtx, dest)
	if err != nil {
		slog.Error("Failed to load existing replies", "sheet", dest.SheetName, "error", err)
		return audited
	}
	for _, id := range ids {
		audited[id] = struct{}{}
	}

	slog.Debug("Loaded existing replies", "count", len(audited))
	return audited
}

func (r *Runner) pageName(ctx context.Context, page Page) string {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	name, err := r.platform.PageName(callCtx, page.ID, page.AccessToken)
	if err != nil {
		slog.Warn("Failed to resolve page name", "page_id", page.ID, "error", err)
		return ""
	}
	return name
}

func (r *Runner) listPosts(ctx context.Context, page Page) ([]social.Post, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()

	posts, err := r.platform.ListPosts(callCtx, page.ID, page.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts for page %s: %w", page.ID, err)
	}
	return posts, nil
}

func (r *Runner) listComments(ctx context.Context, page Page, postID string) ([]social.Comment, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	return r.platform.ListComments(callCtx, postID, page.AccessToken)
}

func (r *Runner) replyAuthorNames(ctx context.Context, page Page, commentID string) ([]string, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	return r.platform.ReplyAuthorNames(callCtx, commentID, page.AccessToken)
}

// classify hands the job context to the classifier, which bounds each
// provider call itself so limiter waits do not eat into a call budget.
func (r *Runner) classify(ctx context.Context, in reply.Input) reply.Decision {
	return r.classifier.Classify(ctx, in)
}

func (r *Runner) postReply(ctx context.Context, page Page, target, text string) (string, error) {
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	return r.platform.PostReply(callCtx, page.AccessToken, target, text)
}

func (r *Runner) appendRecord(ctx context.Context, dest audit.Destination, record audit.Record) error {
	if r.sink == nil {
		return nil
	}
	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	return r.sink.Append(callCtx, dest, record)
}

// callContext detaches external calls from the job's cancellation so a stop
// is only observed at checkpoints.
func (r *Runner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.callTimeout)
}

func (r *Runner) logFinished(s Summary) {
	slog.Info("Triage pass finished",
		"page_id", s.PageID,
		"stop_reason", s.StopReason,
		"posts", s.PostsScanned,
		"comments", s.CommentsSeen,
		"replied", s.Replied,
		"suppressed", s.Suppressed,
		"elapsed", r.now().Sub(s.StartedAt).Round(time.Millisecond))
}

func newRecord(post social.Post, comment social.Comment, target, text string) audit.Record {
	return audit.Record{
		PostID:         post.ID,
		PostContent:    cmp.Or(post.Message, "No post content"),
		PostURL:        cmp.Or(post.PermalinkURL, "No URL"),
		PostTime:       cmp.Or(post.RawCreated, "Unknown"),
		CommentID:      target,
		CommentContent: cmp.Or(comment.Message, "No comment message"),
		CommentURL:     cmp.Or(comment.PermalinkURL, "No comment URL"),
		CommentTime:    cmp.Or(comment.RawCreated, "Unknown"),
		CommenterName:  comment.AuthorName,
		Reply:          text,
	}
}
