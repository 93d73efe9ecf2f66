package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebot-io/notebot/document"
	"github.com/notebot-io/notebot/ledger"
)

// fakeIssueAPI serves the three endpoints the client touches, backed by
// a single mutable issue body.
type fakeIssueAPI struct {
	mu       sync.Mutex
	body     string
	comments []string
	patches  int
}

func (f *fakeIssueAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/issues/7", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(Issue{Number: 7, Body: f.body, HTMLURL: "https://github.test/o/r/issues/7"})
		case http.MethodPatch:
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var payload struct {
				Body string `json:"body"`
			}
			require.NoError(t, json.Unmarshal(data, &payload))
			f.body = payload.Body
			f.patches++
			fmt.Fprint(w, "{}")
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/repos/o/r/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		data, _ := io.ReadAll(r.Body)
		var payload struct {
			Body string `json:"body"`
		}
		_ = json.Unmarshal(data, &payload)
		f.comments = append(f.comments, payload.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "{}")
	})
	return mux
}

func newTestEditor(t *testing.T, api *fakeIssueAPI) *Editor {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewEditor(NewClient("test-token", WithBaseURL(srv.URL)))
}

var testRef = document.Ref{Owner: "o", Repo: "r", Number: 7}

func TestEditor_LoadCurrent_NoRegion(t *testing.T) {
	api := &fakeIssueAPI{body: "plain issue body"}
	ed := newTestEditor(t, api)

	snap, err := ed.LoadCurrent(context.Background(), testRef, "SUMMARY")
	require.NoError(t, err)

	assert.False(t, snap.Found)
	assert.Zero(t, snap.Ledger.Len())
	assert.Equal(t, "plain issue body", snap.Version)
}

func TestEditor_ApplyThenLoadRoundTrip(t *testing.T) {
	api := &fakeIssueAPI{body: "the top post"}
	ed := newTestEditor(t, api)
	ctx := context.Background()

	snap, err := ed.LoadCurrent(ctx, testRef, "SUMMARY")
	require.NoError(t, err)

	state := ledger.Ledger{Entries: []ledger.Entry{
		{Title: "fix-typo", Author: "alice", CommentURL: "https://x/1"},
	}}
	require.NoError(t, ed.ApplyUpdate(ctx, snap, state.Render(), state))

	assert.Contains(t, api.body, "the top post")
	assert.Contains(t, api.body, "<!-- NOTEBOT_SUMMARY_START -->")
	assert.Contains(t, api.body, `["fix-typo" by @alice](https://x/1)`)

	snap2, err := ed.LoadCurrent(ctx, testRef, "SUMMARY")
	require.NoError(t, err)
	assert.True(t, snap2.Found)
	require.Len(t, snap2.Ledger.Entries, 1)
	assert.Equal(t, state.Entries[0], snap2.Ledger.Entries[0])
}

func TestEditor_ApplyUpdate_Conflict(t *testing.T) {
	api := &fakeIssueAPI{body: "original"}
	ed := newTestEditor(t, api)
	ctx := context.Background()

	snap, err := ed.LoadCurrent(ctx, testRef, "SUMMARY")
	require.NoError(t, err)

	// Someone else edits the body after our read.
	api.mu.Lock()
	api.body = "original, but edited"
	api.mu.Unlock()

	state := ledger.Ledger{Entries: []ledger.Entry{{Title: "x", Author: "a", CommentURL: "u"}}}
	err = ed.ApplyUpdate(ctx, snap, state.Render(), state)
	require.ErrorIs(t, err, document.ErrConflict)
	assert.Equal(t, 0, api.patches)
}

func TestEditor_LoadCurrent_MissingDocument(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	ed := NewEditor(NewClient("", WithBaseURL(srv.URL)))

	_, err := ed.LoadCurrent(context.Background(), testRef, "SUMMARY")
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestClient_PostComment(t *testing.T) {
	api := &fakeIssueAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	client := NewClient("tok", WithBaseURL(srv.URL))

	err := client.PostComment(context.Background(), testRef, "no such note")
	require.NoError(t, err)
	require.Len(t, api.comments, 1)
	assert.Equal(t, "no such note", api.comments[0])
}

func TestWebhookPayload_ToCommentEvent(t *testing.T) {
	raw := `{
		"action": "created",
		"issue": {"number": 7, "html_url": "https://github.test/o/r/issues/7"},
		"comment": {"body": "@notebot note x", "html_url": "https://github.test/o/r/issues/7#issuecomment-1", "user": {"login": "alice"}},
		"repository": {"name": "r", "owner": {"login": "o"}}
	}`
	var payload WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	ev, ok := payload.ToCommentEvent("delivery-1")
	require.True(t, ok)
	assert.Equal(t, document.Ref{Owner: "o", Repo: "r", Number: 7}, ev.Ref())
	assert.Equal(t, "alice", ev.Author)
	assert.Equal(t, "https://github.test/o/r/issues/7#issuecomment-1", ev.CommentURL)
	assert.Equal(t, "delivery-1", ev.DeliveryID)

	incomplete := WebhookPayload{}
	_, ok = incomplete.ToCommentEvent("d")
	assert.False(t, ok)
}
