package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Append_PreservesOrder(t *testing.T) {
	var l Ledger

	titles := []string{"first", "second", "third", "fourth"}
	for _, title := range titles {
		l.Append(Entry{Title: title, Author: "alice", CommentURL: "https://x/" + title})
	}

	require.Len(t, l.Entries, len(titles))
	for i, title := range titles {
		assert.Equal(t, title, l.Entries[i].Title)
	}
}

func TestLedger_Append_AllowsDuplicateTitles(t *testing.T) {
	var l Ledger

	l.Append(Entry{Title: "dup", Author: "alice", CommentURL: "https://x/1"})
	l.Append(Entry{Title: "dup", Author: "bob", CommentURL: "https://x/2"})

	require.Len(t, l.Entries, 2)
	assert.Equal(t, "alice", l.Entries[0].Author)
	assert.Equal(t, "bob", l.Entries[1].Author)
}

func TestLedger_RemoveByTitle_FirstMatchOnly(t *testing.T) {
	l := Ledger{Entries: []Entry{
		{Title: "a", CommentURL: "https://x/1"},
		{Title: "b", CommentURL: "https://x/2"},
		{Title: "a", CommentURL: "https://x/3"},
	}}

	require.NoError(t, l.RemoveByTitle("a"))

	require.Len(t, l.Entries, 2)
	assert.Equal(t, "b", l.Entries[0].Title)
	assert.Equal(t, "https://x/2", l.Entries[0].CommentURL)
	assert.Equal(t, "a", l.Entries[1].Title)
	assert.Equal(t, "https://x/3", l.Entries[1].CommentURL)
}

func TestLedger_RemoveByTitle_Missing(t *testing.T) {
	t.Run("empty ledger", func(t *testing.T) {
		var l Ledger
		err := l.RemoveByTitle("anything")
		require.ErrorIs(t, err, ErrEntryNotFound)
		assert.Zero(t, l.Len())
	})

	t.Run("no matching title", func(t *testing.T) {
		l := Ledger{Entries: []Entry{
			{Title: "a"},
			{Title: "b"},
		}}
		err := l.RemoveByTitle("c")
		require.ErrorIs(t, err, ErrEntryNotFound)
		assert.Contains(t, err.Error(), `"c"`)

		// Failed removal must leave the ledger untouched.
		require.Len(t, l.Entries, 2)
		assert.Equal(t, "a", l.Entries[0].Title)
		assert.Equal(t, "b", l.Entries[1].Title)
	})
}

func TestLedger_RemoveByTitle_ExactMatch(t *testing.T) {
	l := Ledger{Entries: []Entry{{Title: "note"}}}

	require.ErrorIs(t, l.RemoveByTitle("Note"), ErrEntryNotFound)
	require.ErrorIs(t, l.RemoveByTitle("note "), ErrEntryNotFound)
	require.NoError(t, l.RemoveByTitle("note"))
}
