// Package audit records every delivered reply and answers which comments
// were already replied to.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// Header is the first row of every audit sheet.
var Header = []string{
	"Post ID", "Post Content", "Post URL", "Post Time", "Comment ID",
	"Comment Content", "Comment URL", "Comment Time", "Commenter Name", "Reply",
}

const commentIDColumn = "Comment ID"

// Record is one delivered reply. CommentID holds the composite
// page_post_comment identifier.
type Record struct {
	PostID         string `json:"post_id"`
	PostContent    string `json:"post_content"`
	PostURL        string `json:"post_url"`
	PostTime       string `json:"post_time"`
	CommentID      string `json:"comment_id"`
	CommentContent string `json:"comment_content"`
	CommentURL     string `json:"comment_url"`
	CommentTime    string `json:"comment_time"`
	CommenterName  string `json:"commenter_name"`
	Reply          string `json:"reply"`
}

// Row returns the record in Header column order.
func (r Record) Row() []string {
	return []string{
		r.PostID, r.PostContent, r.PostURL, r.PostTime, r.CommentID,
		r.CommentContent, r.CommentURL, r.CommentTime, r.CommenterName, r.Reply,
	}
}

// Destination names the spreadsheet tab a job writes to.
type Destination struct {
	SheetID     string
	SheetName   string
	Credentials json.RawMessage // service account key
}

func (d Destination) key() string {
	return d.SheetID + "\x00" + d.SheetName
}

type Sink interface {
	EnsureSchema(ctx context.Context, dest Destination) error
	Append(ctx context.Context, dest Destination, record Record) error
	RepliedCommentIDs(ctx context.Context, dest Destination) ([]string, error)
}

// SheetLink returns the browser URL of a spreadsheet.
func SheetLink(sheetID string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", sheetID)
}
