// Package command defines the parsed user intents the bot understands
// and the parser that extracts them from free-text comments.
package command

import "fmt"

// Kind discriminates the two command variants.
type Kind string

const (
	// KindAdd appends a new titled entry to the ledger.
	KindAdd Kind = "add"
	// KindRemove removes the first entry with a matching title.
	KindRemove Kind = "remove"
)

// Command is one parsed user intent.
type Command struct {
	Kind  Kind
	Title string
}

// String returns a log-friendly form.
func (c Command) String() string {
	return fmt.Sprintf("%s %q", c.Kind, c.Title)
}
