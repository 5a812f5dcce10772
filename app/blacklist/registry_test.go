package blacklist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddIsIdempotent(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	added, err := r.Add([]Entry{{UserID: "1", UserName: "Spammer"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = r.Add([]Entry{{UserID: "1", UserName: "Spammer"}})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, r.Len())
}

func TestAddMatchesByIDOrFoldedName(t *testing.T) {
	r, err := NewRegistry(Entry{UserID: "1", UserName: "Spammer"})
	require.NoError(t, err)

	added, err := r.Add([]Entry{
		{UserID: "1"},             // same id
		{UserName: "SPAMMER"},     // same name, different case
		{UserID: "2", UserName: "Troll"},
		{UserName: "troll"},       // duplicate within the same batch
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Len(t, r.List(), 2)
}

func TestEmptyEntriesAreRejected(t *testing.T) {
	r, err := NewRegistry(Entry{UserName: "Keep"})
	require.NoError(t, err)

	_, err = r.Add([]Entry{{UserName: "Valid"}, {UserID: "  ", UserName: ""}})
	assert.ErrorIs(t, err, ErrEmptyEntry)
	assert.Equal(t, 1, r.Len(), "a rejected batch must not mutate the registry")

	err = r.Replace([]Entry{{}})
	assert.ErrorIs(t, err, ErrEmptyEntry)
	assert.Equal(t, []Entry{{UserName: "Keep"}}, r.List())

	_, err = r.Remove([]Entry{{}})
	assert.ErrorIs(t, err, ErrEmptyEntry)

	_, err = NewRegistry(Entry{})
	assert.ErrorIs(t, err, ErrEmptyEntry)
}

func TestReplace(t *testing.T) {
	r, err := NewRegistry(Entry{UserName: "Old"})
	require.NoError(t, err)

	require.NoError(t, r.Replace([]Entry{{UserID: "9"}, {UserName: "New"}}))
	assert.Equal(t, []Entry{{UserID: "9"}, {UserName: "New"}}, r.List())
	assert.False(t, r.IsBlocked("", "Old"))
}

func TestRemove(t *testing.T) {
	r, err := NewRegistry(
		Entry{UserID: "1", UserName: "Alice"},
		Entry{UserID: "2", UserName: "Bob"},
		Entry{UserName: "Carol"},
	)
	require.NoError(t, err)

	removed, err := r.Remove([]Entry{{UserID: "1"}, {UserName: "carol"}, {UserName: "Nobody"}})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []Entry{{UserID: "2", UserName: "Bob"}}, r.List())
}

func TestClearRequiresConfirmation(t *testing.T) {
	r, err := NewRegistry(Entry{UserName: "Alice"}, Entry{UserID: "2"})
	require.NoError(t, err)

	count, err := r.Clear(false)
	assert.ErrorIs(t, err, ErrClearNotConfirmed)
	assert.Zero(t, count)
	assert.Equal(t, 2, r.Len())

	count, err = r.Clear(true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Empty(t, r.List())
}

func TestIsBlocked(t *testing.T) {
	r, err := NewRegistry(Entry{UserID: "100"}, Entry{UserName: "Ünïcode Nàme"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		id       string
		author   string
		expected bool
	}{
		{"matching id", "100", "Someone", true},
		{"matching name", "7", "ünïcode nàme", true},
		{"matching name upper case", "", "ÜNÏCODE NÀME", true},
		{"no match", "7", "Someone", false},
		{"empty author", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.IsBlocked(tt.id, tt.author))
		})
	}
}

func TestListReturnsCopy(t *testing.T) {
	r, err := NewRegistry(Entry{UserName: "Alice"})
	require.NoError(t, err)

	list := r.List()
	list[0].UserName = "Mallory"
	assert.True(t, r.IsBlocked("", "Alice"))
}

func TestConcurrentAccess(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Add([]Entry{{UserName: "Same"}})
		}()
		go func() {
			defer wg.Done()
			_ = r.IsBlocked("", "same")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
}
