package document

import (
	"fmt"
	"strings"
)

// Marker sentinel fragments. A section named NAME is bracketed by
// "<!-- NOTEBOT_NAME_START -->" and "<!-- NOTEBOT_NAME_END -->", with
// the structured shadow state carried in a data comment just before
// the end marker. Content outside the markers is never touched.
const (
	markerPrefix = "<!-- NOTEBOT_"
	startSuffix  = "_START -->"
	endSuffix    = "_END -->"

	dataStart = "<!-- NOTEBOT_DATA_START$"
	dataEnd   = "$NOTEBOT_DATA_END -->"
)

// Section is the delimited-region codec for one marker name.
type Section struct {
	name string
}

// NewSection returns the codec for the given marker name, e.g. "SUMMARY".
func NewSection(name string) Section {
	return Section{name: name}
}

// Name returns the marker name.
func (s Section) Name() string { return s.name }

func (s Section) startMarker() string {
	return markerPrefix + s.name + startSuffix
}

func (s Section) endMarker() string {
	return markerPrefix + s.name + endSuffix
}

// Region is the decoded content of a delimited region: the rendered
// markdown and the raw serialized shadow state, either of which may be
// empty.
type Region struct {
	Markdown string
	Data     []byte
}

// Extract locates the section in body and decodes it. The second
// return value is false when the body has no section markers. A region
// whose data comment is missing (e.g. hand-edited) decodes with nil
// Data so callers fall back to default state rather than failing.
func (s Section) Extract(body string) (Region, bool) {
	start := strings.Index(body, s.startMarker())
	if start < 0 {
		return Region{}, false
	}
	inner := body[start+len(s.startMarker()):]
	end := strings.Index(inner, s.endMarker())
	if end < 0 {
		return Region{}, false
	}
	inner = inner[:end]

	var region Region
	if ds := strings.Index(inner, dataStart); ds >= 0 {
		rest := inner[ds+len(dataStart):]
		if de := strings.Index(rest, dataEnd); de >= 0 {
			region.Data = []byte(rest[:de])
			inner = inner[:ds]
		}
	}
	region.Markdown = strings.TrimSuffix(inner, "\n")
	return region, true
}

// Splice returns body with the section replaced by markdown plus the
// encoded shadow state. When the body has no section yet, one is
// appended at the end. Everything outside the markers passes through
// byte for byte.
func (s Section) Splice(body, markdown string, data []byte) string {
	section := fmt.Sprintf("%s%s\n%s%s%s\n%s",
		s.startMarker(), markdown, dataStart, data, dataEnd, s.endMarker())

	start := strings.Index(body, s.startMarker())
	if start < 0 {
		if body == "" {
			return section
		}
		return body + "\n\n" + section
	}

	after := body[start+len(s.startMarker()):]
	end := strings.Index(after, s.endMarker())
	if end < 0 {
		// Start marker without an end marker; treat the remainder of
		// the body as outside the region and append a fresh section.
		return body + "\n\n" + section
	}

	return body[:start] + section + after[end+len(s.endMarker()):]
}
