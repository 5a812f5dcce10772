package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// fakeSheets emulates the few Sheets REST calls the sink makes.
type fakeSheets struct {
	mu     sync.Mutex
	tabs   []string
	values [][]string
	calls  []string
	bodies []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.calls = append(f.calls, "get-spreadsheet")
		var tabs []string
		for i, title := range f.tabs {
			tabs = append(tabs, fmt.Sprintf(`{"properties":{"sheetId":%d,"title":%q}}`, i+5, title))
		}
		fmt.Fprintf(w, `{"spreadsheetId":"sheet-1","sheets":[%s]}`, strings.Join(tabs, ","))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "batch-update")
		f.bodies = append(f.bodies, string(body))
		fmt.Fprint(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		f.bodies = append(f.bodies, string(body))
		fmt.Fprint(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "update")
		f.bodies = append(f.bodies, string(body))
		fmt.Fprint(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "get-values")
		rows := f.values
		if strings.HasSuffix(path, "!1:1") && len(rows) > 1 {
			rows = rows[:1]
		}
		out, _ := json.Marshal(map[string]any{"range": "x", "values": rows})
		w.Write(out)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":{"code":404,"message":"unexpected %s %s"}}`, r.Method, path)
	}
}

func newFakeSink(t *testing.T, fake *fakeSheets) *SheetsSink {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return NewSheetsSink(func(ctx context.Context, credentials []byte) (*sheets.Service, error) {
		return sheets.NewService(ctx,
			option.WithEndpoint(server.URL+"/"),
			option.WithHTTPClient(server.Client()),
		)
	})
}

var testDest = Destination{SheetID: "sheet-1", SheetName: "Replies", Credentials: []byte(`{"type":"service_account"}`)}

func TestEnsureSchemaCreatesMissingTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"Sheet1"}}
	sink := newFakeSink(t, fake)

	require.NoError(t, sink.EnsureSchema(context.Background(), testDest))

	assert.Equal(t, []string{"get-spreadsheet", "batch-update", "update"}, fake.calls)
	assert.Contains(t, fake.bodies[0], `"addSheet"`)
	assert.Contains(t, fake.bodies[0], `"Replies"`)
	assert.Contains(t, fake.bodies[1], `"Commenter Name"`)
}

func TestEnsureSchemaRepairsHeader(t *testing.T) {
	fake := &fakeSheets{
		tabs:   []string{"Replies"},
		values: [][]string{{"something", "else"}, {"row"}},
	}
	sink := newFakeSink(t, fake)

	require.NoError(t, sink.EnsureSchema(context.Background(), testDest))

	assert.Equal(t, []string{"get-spreadsheet", "get-values", "batch-update", "update"}, fake.calls)
	assert.Contains(t, fake.bodies[0], `"insertDimension"`)
	assert.Contains(t, fake.bodies[0], `"sheetId":5`)
}

func TestEnsureSchemaKeepsMatchingHeader(t *testing.T) {
	fake := &fakeSheets{
		tabs:   []string{"Replies"},
		values: [][]string{Header},
	}
	sink := newFakeSink(t, fake)

	require.NoError(t, sink.EnsureSchema(context.Background(), testDest))
	assert.Equal(t, []string{"get-spreadsheet", "get-values"}, fake.calls)
}

func TestAppendWritesRowInHeaderOrder(t *testing.T) {
	fake := &fakeSheets{
		tabs:   []string{"Replies"},
		values: [][]string{Header},
	}
	sink := newFakeSink(t, fake)

	record := Record{PostID: "1_2", CommentID: "1_2_3", CommenterName: "Alice", Reply: "Thanks!"}
	require.NoError(t, sink.Append(context.Background(), testDest, record))

	require.Equal(t, "append", fake.calls[len(fake.calls)-1])
	body := fake.bodies[len(fake.bodies)-1]
	assert.Contains(t, body, `["1_2","","","","1_2_3","","","","Alice","Thanks!"]`)
}

func TestRepliedCommentIDsReadsCommentColumn(t *testing.T) {
	fake := &fakeSheets{
		tabs: []string{"Replies"},
		values: [][]string{
			Header,
			{"1_2", "post", "", "", "1_2_3"},
			{"1_2", "post", "", "", "1_2_4", "more"},
		},
	}
	sink := newFakeSink(t, fake)

	ids, err := sink.RepliedCommentIDs(context.Background(), testDest)
	require.NoError(t, err)
	assert.Equal(t, []string{"1_2_3", "1_2_4"}, ids)
}

func TestSinkRequiresDestination(t *testing.T) {
	sink := NewSheetsSink(nil)

	err := sink.EnsureSchema(context.Background(), Destination{SheetName: "Replies", Credentials: []byte("{}")})
	assert.ErrorIs(t, err, ErrNoSheetID)

	_, err = sink.RepliedCommentIDs(context.Background(), Destination{SheetID: "x", SheetName: "Replies"})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestCommentIDs(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]string
		expected []string
	}{
		{"empty sheet", nil, nil},
		{"header only", [][]string{Header}, nil},
		{"no comment column", [][]string{{"A", "B"}, {"1", "2"}}, nil},
		{"moved column", [][]string{{"Reply", "Comment ID"}, {"hi", "9_8_7"}, {"short"}}, []string{"9_8_7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, commentIDs(tt.rows))
		})
	}
}

func TestA1Range(t *testing.T) {
	assert.Equal(t, "'Sheet1'!A1", a1Range("Sheet1", "A1"))
	assert.Equal(t, "'Bob''s replies'", a1Range("Bob's replies", ""))
}

func TestHeaderMatches(t *testing.T) {
	assert.True(t, headerMatches(append([]string(nil), Header...)))
	assert.False(t, headerMatches(nil))
	assert.False(t, headerMatches(Header[:9]))
}

func TestSheetLink(t *testing.T) {
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc/edit", SheetLink("abc"))
}
