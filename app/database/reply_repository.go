package database

import (
	"context"
	"fmt"
)

// SQLReplyRepository handles database operations for delivered replies
type SQLReplyRepository struct {
	db *DB
}

// NewReplyRepository creates a new reply repository
func NewReplyRepository(db *DB) *SQLReplyRepository {
	return &SQLReplyRepository{db: db}
}

// InsertReply records a delivered reply. A second insert for the same
// comment is ignored.
func (r *SQLReplyRepository) InsertReply(ctx context.Context, reply Reply) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO replies (
			comment_id, post_id, post_content, post_url, post_time,
			comment_content, comment_url, comment_time, commenter_name,
			reply, sheet_id, sheet_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (comment_id) DO NOTHING
	`, reply.CommentID, reply.PostID, reply.PostContent, reply.PostURL, reply.PostTime,
		reply.CommentContent, reply.CommentURL, reply.CommentTime, reply.CommenterName,
		reply.Reply, reply.SheetID, reply.SheetName)

	if err != nil {
		return fmt.Errorf("failed to store reply: %w", err)
	}

	return nil
}

// GetRepliedCommentIDs returns every comment id present in the ledger
func (r *SQLReplyRepository) GetRepliedCommentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT comment_id FROM replies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query replied comments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan comment id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetReplyCount returns the number of recorded replies
func (r *SQLReplyRepository) GetReplyCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM replies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count replies: %w", err)
	}
	return count, nil
}

// GetRecentReplies returns the latest recorded replies, newest first
func (r *SQLReplyRepository) GetRecentReplies(ctx context.Context, limit int) ([]Reply, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, comment_id, post_id, post_content, post_url, post_time,
		       comment_content, comment_url, comment_time, commenter_name,
		       reply, sheet_id, sheet_name, created_at
		FROM replies
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query replies: %w", err)
	}
	defer rows.Close()

	var replies []Reply
	for rows.Next() {
		var reply Reply
		err := rows.Scan(
			&reply.ID, &reply.CommentID, &reply.PostID, &reply.PostContent, &reply.PostURL, &reply.PostTime,
			&reply.CommentContent, &reply.CommentURL, &reply.CommentTime, &reply.CommenterName,
			&reply.Reply, &reply.SheetID, &reply.SheetName, &reply.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		replies = append(replies, reply)
	}

	return replies, rows.Err()
}
