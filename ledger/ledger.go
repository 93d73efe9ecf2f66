// Package ledger provides the note ledger data model: an ordered list
// of summary-note entries attached to one document, plus the mutation
// operations the command dispatcher applies to it.
package ledger

import "fmt"

// Entry is one summary note: a user-supplied title, the handle of the
// commenter who posted it, and a permanent link to the comment.
type Entry struct {
	Title      string `json:"title"`
	CommentURL string `json:"comment_url"`
	Author     string `json:"author"`
}

// Ledger is the ordered collection of entries for one document.
// Insertion order is chronological and is preserved through rendering.
// The zero value is an empty, usable ledger.
type Ledger struct {
	Entries []Entry `json:"entries"`
}

// Append inserts the entry at the end of the ledger. Duplicate titles
// are permitted; no uniqueness constraint exists at append time.
func (l *Ledger) Append(e Entry) {
	l.Entries = append(l.Entries, e)
}

// RemoveByTitle deletes the first entry whose title matches exactly.
// When no entry matches, the ledger is left unchanged and the returned
// error wraps ErrEntryNotFound.
func (l *Ledger) RemoveByTitle(title string) error {
	for i, e := range l.Entries {
		if e.Title == title {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrEntryNotFound, title)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.Entries)
}
