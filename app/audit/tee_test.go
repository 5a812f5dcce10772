package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/replybot/app/database"
)

type memorySink struct {
	ids     []string
	records []Record
	err     error
}

func (m *memorySink) EnsureSchema(ctx context.Context, dest Destination) error {
	return m.err
}

func (m *memorySink) Append(ctx context.Context, dest Destination, record Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memorySink) RepliedCommentIDs(ctx context.Context, dest Destination) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.ids, nil
}

func TestTeeUnionsReplied(t *testing.T) {
	tee := NewTee(&memorySink{ids: []string{"a", "b"}}, nil, &memorySink{ids: []string{"b", "c"}})

	ids, err := tee.RepliedCommentIDs(context.Background(), testDest)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestTeeToleratesPartialReadFailure(t *testing.T) {
	tee := NewTee(&memorySink{err: errors.New("sheets down")}, &memorySink{ids: []string{"a"}})

	ids, err := tee.RepliedCommentIDs(context.Background(), testDest)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	failing := NewTee(&memorySink{err: errors.New("sheets down")})
	_, err = failing.RepliedCommentIDs(context.Background(), testDest)
	assert.Error(t, err)
}

func TestTeeAppendWritesEverySink(t *testing.T) {
	boom := errors.New("boom")
	first := &memorySink{err: boom}
	second := &memorySink{}
	tee := NewTee(first, second)

	err := tee.Append(context.Background(), testDest, Record{CommentID: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, second.records, 1, "a failing sink must not block the others")

	assert.ErrorIs(t, tee.EnsureSchema(context.Background(), testDest), boom)
}

func TestLedgerSink(t *testing.T) {
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sink := NewLedgerSink(database.NewReplyRepository(db))
	ctx := context.Background()

	require.NoError(t, sink.EnsureSchema(ctx, testDest))
	require.NoError(t, sink.Append(ctx, testDest, Record{PostID: "1_2", CommentID: "1_2_3", Reply: "Thanks"}))

	ids, err := sink.RepliedCommentIDs(ctx, testDest)
	require.NoError(t, err)
	assert.Equal(t, []string{"1_2_3"}, ids)
}
