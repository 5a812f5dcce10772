package database

import (
	"time"
)

// Reply is one delivered reply as stored in the ledger.
type Reply struct {
	ID             int64     `json:"id"`
	CommentID      string    `json:"comment_id"` // composite comment id
	PostID         string    `json:"post_id"`
	PostContent    string    `json:"post_content"`
	PostURL        string    `json:"post_url"`
	PostTime       string    `json:"post_time"`
	CommentContent string    `json:"comment_content"`
	CommentURL     string    `json:"comment_url"`
	CommentTime    string    `json:"comment_time"`
	CommenterName  string    `json:"commenter_name"`
	Reply          string    `json:"reply"`
	SheetID        string    `json:"sheet_id"`
	SheetName      string    `json:"sheet_name"`
	CreatedAt      time.Time `json:"created_at"`
}
