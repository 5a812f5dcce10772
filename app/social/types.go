package social

import (
	"fmt"
	"strings"
	"time"
)

type Post struct {
	ID           string
	Message      string
	PermalinkURL string
	CreatedTime  time.Time
	RawCreated   string // as returned by the platform, kept for audit records
}

type Comment struct {
	ID           string // raw comment id, used for in-pass dedup
	PostID       string
	Message      string
	PermalinkURL string
	CreatedTime  time.Time
	RawCreated   string
	AuthorID     string
	AuthorName   string
}

// CompositeID joins the page id with the trailing segments of the post and
// comment ids. Replies are posted against this id.
func (c Comment) CompositeID(pageID string) string {
	return CompositeCommentID(pageID, c.PostID, c.ID)
}

// ProfileLink returns the author's profile URL, or the author name when the id is unknown.
func (c Comment) ProfileLink() string {
	if c.AuthorID == "" {
		return c.AuthorName
	}
	return "https://www.facebook.com/profile.php?id=" + c.AuthorID
}

func CompositeCommentID(pageID, postID, commentID string) string {
	return fmt.Sprintf("%s_%s_%s", pageID, lastSegment(postID), lastSegment(commentID))
}

func lastSegment(id string) string {
	if i := strings.LastIndex(id, "_"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// StatusError is returned for any non-2xx response from the platform.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Wire types

type paging struct {
	Next string `json:"next"`
}

type author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type postPayload struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
}

type commentPayload struct {
	ID           string  `json:"id"`
	Message      string  `json:"message"`
	CreatedTime  string  `json:"created_time"`
	PermalinkURL string  `json:"permalink_url"`
	From         *author `json:"from"`
}

type postsPage struct {
	Data   []postPayload `json:"data"`
	Paging paging        `json:"paging"`
}

type commentsPage struct {
	Data   []commentPayload `json:"data"`
	Paging paging           `json:"paging"`
}

type repliesPage struct {
	Data []struct {
		From *author `json:"from"`
	} `json:"data"`
}
