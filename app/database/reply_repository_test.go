package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnection(filepath.Join(t.TempDir(), "nested", "replies.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestInsertAndQueryReplies(t *testing.T) {
	ctx := context.Background()
	repo := NewReplyRepository(newTestDB(t))

	ids, err := repo.GetRepliedCommentIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repo.InsertReply(ctx, Reply{
		CommentID:      "1_2_3",
		PostID:         "1_2",
		PostContent:    "Launch day",
		CommentContent: "congrats",
		CommenterName:  "Alice",
		Reply:          "Thank you!",
		SheetID:        "sheet",
		SheetName:      "Replies",
	}))
	require.NoError(t, repo.InsertReply(ctx, Reply{CommentID: "1_2_4", PostID: "1_2", Reply: "Hi"}))

	ids, err = repo.GetRepliedCommentIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1_2_3", "1_2_4"}, ids)

	recent, err := repo.GetRecentReplies(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "1_2_4", recent[0].CommentID)
	assert.False(t, recent[0].CreatedAt.IsZero())
}

func TestInsertReplyIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewReplyRepository(newTestDB(t))

	require.NoError(t, repo.InsertReply(ctx, Reply{CommentID: "1_2_3", Reply: "first"}))
	require.NoError(t, repo.InsertReply(ctx, Reply{CommentID: "1_2_3", Reply: "second"}))

	count, err := repo.GetReplyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recent, err := repo.GetRecentReplies(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "first", recent[0].Reply)
}
