package social

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

const unknownName = "[Unknown]"

// Graph API timestamps look like 2025-03-05T10:20:30+0000.
var timeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
	userAgent  string
}

func NewClient(httpClient *http.Client, baseURL, version, userAgent string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		userAgent:  userAgent,
	}
}

// ListPosts drains the page feed and returns posts sorted newest-first.
func (c *Client) ListPosts(ctx context.Context, pageID, accessToken string) ([]Post, error) {
	next := c.endpoint(pageID+"/feed", url.Values{
		"access_token": {accessToken},
		"fields":       {"id,message,created_time,permalink_url"},
	})

	var posts []Post
	for next != "" {
		var page postsPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch posts: %w", err)
		}
		for _, p := range page.Data {
			posts = append(posts, Post{
				ID:           p.ID,
				Message:      p.Message,
				PermalinkURL: p.PermalinkURL,
				CreatedTime:  parseTime(p.CreatedTime),
				RawCreated:   p.CreatedTime,
			})
		}
		next = page.Paging.Next
	}

	slices.SortStableFunc(posts, func(a, b Post) int {
		return b.CreatedTime.Compare(a.CreatedTime)
	})

	slog.Debug("Posts fetched", "page_id", pageID, "count", len(posts))
	return posts, nil
}

// ListComments drains the comments of a post and returns them sorted newest-first.
func (c *Client) ListComments(ctx context.Context, postID, accessToken string) ([]Comment, error) {
	next := c.endpoint(postID+"/comments", url.Values{
		"access_token": {accessToken},
		"fields":       {"id,message,created_time,permalink_url,from"},
	})

	var comments []Comment
	for next != "" {
		var page commentsPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch comments: %w", err)
		}
		for _, p := range page.Data {
			comment := Comment{
				ID:           p.ID,
				PostID:       postID,
				Message:      p.Message,
				PermalinkURL: p.PermalinkURL,
				CreatedTime:  parseTime(p.CreatedTime),
				RawCreated:   p.CreatedTime,
				AuthorName:   "Anonymous",
			}
			if p.From != nil {
				comment.AuthorID = p.From.ID
				comment.AuthorName = cmp.Or(p.From.Name, comment.AuthorName)
			}
			comments = append(comments, comment)
		}
		next = page.Paging.Next
	}

	slices.SortStableFunc(comments, func(a, b Comment) int {
		return b.CreatedTime.Compare(a.CreatedTime)
	})

	return comments, nil
}

// PostReply publishes text as a reply to the target comment and returns the new comment id.
func (c *Client) PostReply(ctx context.Context, accessToken, targetCommentID, text string) (string, error) {
	form := url.Values{
		"access_token": {accessToken},
		"message":      {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint(targetCommentID+"/comments", nil), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var ack struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &ack); err != nil {
		return "", fmt.Errorf("failed to post reply: %w", err)
	}

	slog.Info("Reply posted", "target", targetCommentID, "reply_id", ack.ID)
	return ack.ID, nil
}

// ReplyAuthorNames lists the display names of everyone who already replied to a comment.
func (c *Client) ReplyAuthorNames(ctx context.Context, commentID, accessToken string) ([]string, error) {
	var page repliesPage
	err := c.getJSON(ctx, c.endpoint(commentID+"/comments", url.Values{
		"access_token": {accessToken},
		"fields":       {"from"},
	}), &page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replies: %w", err)
	}

	names := make([]string, 0, len(page.Data))
	for _, reply := range page.Data {
		name := unknownName
		if reply.From != nil && reply.From.Name != "" {
			name = reply.From.Name
		}
		names = append(names, name)
	}
	return names, nil
}

// PageName resolves the display name of the page.
func (c *Client) PageName(ctx context.Context, pageID, accessToken string) (string, error) {
	var page struct {
		Name string `json:"name"`
	}
	err := c.getJSON(ctx, c.endpoint(pageID, url.Values{
		"access_token": {accessToken},
		"fields":       {"name"},
	}), &page)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page name: %w", err)
	}
	return cmp.Or(page.Name, unknownName), nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     req.Method,
			URL:        redact(req.URL),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// redact drops the query string so tokens never end up in logs.
func redact(u *url.URL) string {
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}

func parseTime(value string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
