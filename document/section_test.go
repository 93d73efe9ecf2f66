package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSection_SpliceIntoFreshBody(t *testing.T) {
	s := NewSection("SUMMARY")
	body := "Original issue text.\n\nSteps to reproduce..."

	out := s.Splice(body, "\n### Summary Notes\n\n- note", []byte(`{"entries":[]}`))

	assert.Contains(t, out, "Original issue text.")
	assert.Contains(t, out, "<!-- NOTEBOT_SUMMARY_START -->")
	assert.Contains(t, out, "<!-- NOTEBOT_SUMMARY_END -->")
	assert.Contains(t, out, "### Summary Notes")

	// The original text must pass through unmodified, before the region.
	assert.True(t, len(out) > len(body))
	assert.Equal(t, body, out[:len(body)])
}

func TestSection_RoundTrip(t *testing.T) {
	s := NewSection("SUMMARY")
	markdown := "\n### Summary Notes\n\n- [\"x\" by @a](https://x/1)"
	data := []byte(`{"entries":[{"title":"x","comment_url":"https://x/1","author":"a"}]}`)

	body := s.Splice("issue body", markdown, data)
	region, found := s.Extract(body)

	require.True(t, found)
	assert.Equal(t, markdown, region.Markdown)
	assert.Equal(t, data, region.Data)
}

func TestSection_SpliceReplacesExisting(t *testing.T) {
	s := NewSection("SUMMARY")

	body := s.Splice("before text", "\nold markdown", []byte(`{"v":1}`))
	body = body + "\n\ntrailing text added by a human"

	updated := s.Splice(body, "\nnew markdown", []byte(`{"v":2}`))

	assert.NotContains(t, updated, "old markdown")
	assert.Contains(t, updated, "new markdown")
	assert.Contains(t, updated, "before text")
	assert.Contains(t, updated, "trailing text added by a human")

	region, found := s.Extract(updated)
	require.True(t, found)
	assert.Equal(t, "\nnew markdown", region.Markdown)
	assert.Equal(t, []byte(`{"v":2}`), region.Data)
}

func TestSection_EmptyMarkdownCollapsesRegion(t *testing.T) {
	s := NewSection("SUMMARY")

	body := s.Splice("top post", "", []byte(`{"entries":[]}`))
	region, found := s.Extract(body)

	require.True(t, found)
	assert.Equal(t, "", region.Markdown)
}

func TestSection_ExtractMissing(t *testing.T) {
	s := NewSection("SUMMARY")

	_, found := s.Extract("plain body with no markers")
	assert.False(t, found)

	// Start without end is not a region.
	_, found = s.Extract("text <!-- NOTEBOT_SUMMARY_START --> dangling")
	assert.False(t, found)
}

func TestSection_ExtractWithoutDataComment(t *testing.T) {
	s := NewSection("SUMMARY")
	body := "x\n\n<!-- NOTEBOT_SUMMARY_START -->\nhand written\n<!-- NOTEBOT_SUMMARY_END -->"

	region, found := s.Extract(body)

	require.True(t, found)
	assert.Nil(t, region.Data)
	assert.Contains(t, region.Markdown, "hand written")
}

func TestSection_DistinctMarkerNames(t *testing.T) {
	summary := NewSection("SUMMARY")
	other := NewSection("AGENDA")

	body := summary.Splice("base", "\nsummary content", []byte(`{}`))
	_, found := other.Extract(body)
	assert.False(t, found)
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		input   string
		want    Ref
		wantErr bool
	}{
		{"rust-lang/rust#1234", Ref{"rust-lang", "rust", 1234}, false},
		{"a/b#1", Ref{"a", "b", 1}, false},
		{"missing-number", Ref{}, true},
		{"no-slash#5", Ref{}, true},
		{"a/b#zero", Ref{}, true},
		{"a/b#0", Ref{}, true},
		{"", Ref{}, true},
	}

	for _, tc := range tests {
		got, err := ParseRef(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.input, got.String())
	}
}

func TestRef_IsZero(t *testing.T) {
	assert.True(t, Ref{}.IsZero())
	assert.True(t, Ref{Owner: "a", Repo: "b"}.IsZero())
	assert.False(t, Ref{Owner: "a", Repo: "b", Number: 1}.IsZero())
}
