package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Parser errors.
var (
	// ErrNoCommand is returned when the comment contains no bot
	// invocation at all. Callers treat this as "not for us".
	ErrNoCommand = errors.New("no note command in comment")

	// ErrEmptyTitle is returned when an invocation is present but no
	// title follows it.
	ErrEmptyTitle = errors.New("note command requires a title")
)

// Parser extracts note commands addressed to a given mention handle.
type Parser struct {
	mention string
	pattern *regexp.Regexp
}

// NewParser returns a parser for comments addressed to @mention,
// e.g. NewParser("notebot") recognizes lines of the form
//
//	@notebot note <title>
//	@notebot note remove <title>
//
// The invocation must start a line; surrounding comment text is
// ignored. Titles may be double-quoted to preserve leading and
// trailing spaces.
func NewParser(mention string) *Parser {
	return &Parser{
		mention: mention,
		pattern: regexp.MustCompile(`(?m)^\s*@` + regexp.QuoteMeta(mention) + `\s+note\s+(.*)$`),
	}
}

// Parse scans body for the first note invocation and returns the
// parsed command. ErrNoCommand is returned when the body never
// addresses the bot.
func (p *Parser) Parse(body string) (Command, error) {
	m := p.pattern.FindStringSubmatch(body)
	if m == nil {
		return Command{}, ErrNoCommand
	}

	args := strings.TrimSpace(m[1])
	kind := KindAdd
	if rest, ok := strings.CutPrefix(args, "remove"); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
		kind = KindRemove
		args = strings.TrimSpace(rest)
	}

	title := unquote(args)
	if title == "" {
		return Command{}, fmt.Errorf("%w: %s", ErrEmptyTitle, kind)
	}

	return Command{Kind: kind, Title: title}, nil
}

// unquote strips one pair of surrounding double quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
