package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.Client(), server.URL, "v22.0", "ReplyBot/test"), server
}

func TestListPostsDrainsPaginationAndSortsNewestFirst(t *testing.T) {
	var serverURL string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v22.0/page1/feed" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "token" {
			t.Errorf("Expected access token to be forwarded")
		}
		if r.URL.Query().Get("after") == "" {
			fmt.Fprintf(w, `{"data":[
				{"id":"page1_1","message":"old","created_time":"2025-03-02T10:00:00+0000"},
				{"id":"page1_3","message":"newest","created_time":"2025-04-01T10:00:00+0000"}
			],"paging":{"next":"%s/v22.0/page1/feed?access_token=token&after=c1"}}`, serverURL)
			return
		}
		fmt.Fprint(w, `{"data":[
			{"id":"page1_2","message":"middle","created_time":"2025-03-15T10:00:00+0000","permalink_url":"https://fb/2"}
		],"paging":{}}`)
	})
	serverURL = server.URL

	posts, err := client.ListPosts(context.Background(), "page1", "token")
	if err != nil {
		t.Fatal(err)
	}

	if len(posts) != 3 {
		t.Fatalf("Expected 3 posts, got %d", len(posts))
	}
	expected := []string{"page1_3", "page1_2", "page1_1"}
	for i, id := range expected {
		if posts[i].ID != id {
			t.Errorf("Expected post %d to be %s, got %s", i, id, posts[i].ID)
		}
	}
	if posts[1].PermalinkURL != "https://fb/2" {
		t.Errorf("Expected permalink to be decoded, got '%s'", posts[1].PermalinkURL)
	}
	if posts[0].CreatedTime.IsZero() {
		t.Error("Expected created time to be parsed")
	}
}

func TestListCommentsAuthorDefaults(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"1_10","message":"first","created_time":"2025-03-02T10:00:00+0000","from":{"id":"u1","name":"Alice"}},
			{"id":"1_11","message":"second","created_time":"2025-03-03T10:00:00+0000"}
		]}`)
	})

	comments, err := client.ListComments(context.Background(), "page_1", "token")
	if err != nil {
		t.Fatal(err)
	}

	if len(comments) != 2 {
		t.Fatalf("Expected 2 comments, got %d", len(comments))
	}
	if comments[0].ID != "1_11" || comments[0].AuthorName != "Anonymous" {
		t.Errorf("Expected newest anonymous comment first, got %+v", comments[0])
	}
	if comments[1].AuthorID != "u1" || comments[1].AuthorName != "Alice" {
		t.Errorf("Expected author to be decoded, got %+v", comments[1])
	}
	if comments[1].PostID != "page_1" {
		t.Errorf("Expected post id to be attached, got '%s'", comments[1].PostID)
	}
}

func TestStatusErrorOnNonSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"bad token"}}`)
	})

	_, err := client.ListPosts(context.Background(), "page1", "secret-token")
	if err == nil {
		t.Fatal("Expected error for 403 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", statusErr.StatusCode)
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Error("Access token must not appear in error messages")
	}
}

func TestPostReply(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v22.0/page_post_comment/comments" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("message") != "Thanks!" {
			t.Errorf("Expected message 'Thanks!', got '%s'", r.PostForm.Get("message"))
		}
		fmt.Fprint(w, `{"id":"reply-1"}`)
	})

	id, err := client.PostReply(context.Background(), "token", "page_post_comment", "Thanks!")
	if err != nil {
		t.Fatal(err)
	}
	if id != "reply-1" {
		t.Errorf("Expected reply id 'reply-1', got '%s'", id)
	}
}

func TestReplyAuthorNamesAndPageName(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v22.0/c1/comments":
			fmt.Fprint(w, `{"data":[{"from":{"name":"My Page"}},{"from":{}}]}`)
		case "/v22.0/page1":
			fmt.Fprint(w, `{"name":"My Page","id":"page1"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	names, err := client.ReplyAuthorNames(context.Background(), "c1", "token")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "My Page" || names[1] != unknownName {
		t.Errorf("Unexpected names %v", names)
	}

	name, err := client.PageName(context.Background(), "page1", "token")
	if err != nil {
		t.Fatal(err)
	}
	if name != "My Page" {
		t.Errorf("Expected 'My Page', got '%s'", name)
	}
}

func TestCompositeCommentID(t *testing.T) {
	tests := []struct {
		pageID, postID, commentID, expected string
	}{
		{"111", "111_222", "222_333", "111_222_333"},
		{"111", "222", "333", "111_222_333"},
		{"111", "a_b_222", "x_333", "111_222_333"},
	}

	for _, tt := range tests {
		if got := CompositeCommentID(tt.pageID, tt.postID, tt.commentID); got != tt.expected {
			t.Errorf("CompositeCommentID(%q, %q, %q) = %q, expected %q", tt.pageID, tt.postID, tt.commentID, got, tt.expected)
		}
	}

	comment := Comment{ID: "222_333", PostID: "111_222", AuthorID: "42"}
	if comment.CompositeID("111") != "111_222_333" {
		t.Errorf("Unexpected composite id %s", comment.CompositeID("111"))
	}
	if comment.ProfileLink() != "https://www.facebook.com/profile.php?id=42" {
		t.Errorf("Unexpected profile link %s", comment.ProfileLink())
	}
}
