package database

import (
	"context"
)

type ReplyRepository interface {
	InsertReply(ctx context.Context, reply Reply) error
	GetRepliedCommentIDs(ctx context.Context) ([]string, error)
	GetReplyCount(ctx context.Context) (int, error)
	GetRecentReplies(ctx context.Context, limit int) ([]Reply, error)
}

var _ ReplyRepository = (*SQLReplyRepository)(nil)
