package audit

import (
	"context"

	"github.com/lysyi3m/replybot/app/database"
)

// LedgerSink keeps a local copy of every record in the SQLite reply ledger.
type LedgerSink struct {
	repo database.ReplyRepository
}

func NewLedgerSink(repo database.ReplyRepository) *LedgerSink {
	return &LedgerSink{repo: repo}
}

// EnsureSchema is a no-op; the ledger schema is owned by migrations.
func (l *LedgerSink) EnsureSchema(ctx context.Context, dest Destination) error {
	return nil
}

func (l *LedgerSink) Append(ctx context.Context, dest Destination, record Record) error {
	return l.repo.InsertReply(ctx, database.Reply{
		CommentID:      record.CommentID,
		PostID:         record.PostID,
		PostContent:    record.PostContent,
		PostURL:        record.PostURL,
		PostTime:       record.PostTime,
		CommentContent: record.CommentContent,
		CommentURL:     record.CommentURL,
		CommentTime:    record.CommentTime,
		CommenterName:  record.CommenterName,
		Reply:          record.Reply,
		SheetID:        dest.SheetID,
		SheetName:      dest.SheetName,
	})
}

func (l *LedgerSink) RepliedCommentIDs(ctx context.Context, dest Destination) ([]string, error) {
	return l.repo.GetRepliedCommentIDs(ctx)
}
