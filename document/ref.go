// Package document models the target document surface: references to
// issues or pull requests, the delimited region codec that owns the
// machine-managed span of a document body, and the Editor contract
// through which ledger state is loaded and persisted atomically.
package document

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref identifies one target document (an issue or pull request).
type Ref struct {
	Owner  string
	Repo   string
	Number int
}

// String returns the canonical "owner/repo#number" form.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// FullRepo returns the "owner/repo" slug.
func (r Ref) FullRepo() string {
	return r.Owner + "/" + r.Repo
}

// IsZero reports whether the ref is missing any component.
func (r Ref) IsZero() bool {
	return r.Owner == "" || r.Repo == "" || r.Number == 0
}

// ParseRef parses a "owner/repo#number" string.
func ParseRef(s string) (Ref, error) {
	slug, num, ok := strings.Cut(s, "#")
	if !ok {
		return Ref{}, fmt.Errorf("invalid document ref %q: missing #number", s)
	}
	owner, repo, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || repo == "" {
		return Ref{}, fmt.Errorf("invalid document ref %q: expected owner/repo", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return Ref{}, fmt.Errorf("invalid document ref %q: bad number", s)
	}
	return Ref{Owner: owner, Repo: repo, Number: n}, nil
}
