package ledger

import (
	"fmt"
	"strings"
)

// HelpURL is the documentation link included in the rendered footer.
const HelpURL = "https://github.com/notebot-io/notebot/wiki/Note"

// Render produces the markdown text that fills the delimited region.
// An empty ledger renders to the empty string so the region collapses
// to nothing between its markers. Rendering is deterministic: the same
// ledger always yields the same text.
func (l *Ledger) Render() string {
	if len(l.Entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n### Summary Notes\n")
	for _, e := range l.Entries {
		fmt.Fprintf(&b, "\n- [\"%s\" by @%s](%s)", e.Title, e.Author, e.CommentURL)
	}
	fmt.Fprintf(&b, "\n\nGenerated by notebot, see [help](%s) for how to add more", HelpURL)
	return b.String()
}
