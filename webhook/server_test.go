package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebot-io/notebot/github"
)

type capturePublisher struct {
	events []github.CommentEvent
	err    error
}

func (p *capturePublisher) PublishEvent(_ context.Context, ev github.CommentEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

const commentPayload = `{
	"action": "created",
	"issue": {"number": 7, "html_url": "https://github.test/o/r/issues/7"},
	"comment": {"body": "@notebot note x", "html_url": "https://github.test/o/r/issues/7#issuecomment-1", "user": {"login": "alice"}},
	"repository": {"name": "r", "owner": {"login": "o"}}
}`

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, srv *Server, payload string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestServer_AcceptsSignedCommentEvent(t *testing.T) {
	pub := &capturePublisher{}
	srv := NewServer("s3cret", nil, pub, nil)

	rec := postWebhook(t, srv, commentPayload, map[string]string{
		"X-GitHub-Event":      "issue_comment",
		"X-GitHub-Delivery":   "d-1",
		"X-Hub-Signature-256": sign("s3cret", commentPayload),
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "d-1", ev.DeliveryID)
	assert.Equal(t, "o/r#7", ev.Ref().String())
	assert.Equal(t, "alice", ev.Author)
	assert.Equal(t, "@notebot note x", ev.Body)
}

func TestServer_RejectsBadSignature(t *testing.T) {
	pub := &capturePublisher{}
	srv := NewServer("s3cret", nil, pub, nil)

	rec := postWebhook(t, srv, commentPayload, map[string]string{
		"X-GitHub-Event":      "issue_comment",
		"X-Hub-Signature-256": sign("wrong-secret", commentPayload),
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, pub.events)
}

func TestServer_RejectsMissingSignature(t *testing.T) {
	pub := &capturePublisher{}
	srv := NewServer("s3cret", nil, pub, nil)

	rec := postWebhook(t, srv, commentPayload, map[string]string{
		"X-GitHub-Event": "issue_comment",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, pub.events)
}

func TestServer_IgnoresOtherEvents(t *testing.T) {
	pub := &capturePublisher{}
	srv := NewServer("", nil, pub, nil)

	rec := postWebhook(t, srv, `{"action":"opened"}`, map[string]string{
		"X-GitHub-Event": "issues",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.events)
}

func TestServer_IgnoresEditedComments(t *testing.T) {
	pub := &capturePublisher{}
	srv := NewServer("", nil, pub, nil)

	payload := strings.Replace(commentPayload, `"created"`, `"edited"`, 1)
	rec := postWebhook(t, srv, payload, map[string]string{
		"X-GitHub-Event": "issue_comment",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.events)
}

func TestServer_RepoFilter(t *testing.T) {
	pub := &capturePublisher{}
	srv := NewServer("", []string{"rust-lang/*"}, pub, nil)

	rec := postWebhook(t, srv, commentPayload, map[string]string{
		"X-GitHub-Event": "issue_comment",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.events, "o/r should be filtered out")

	srv = NewServer("", []string{"o/*"}, pub, nil)
	rec = postWebhook(t, srv, commentPayload, map[string]string{
		"X-GitHub-Event": "issue_comment",
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, pub.events, 1)
}

func TestServer_GeneratesDeliveryID(t *testing.T) {
	pub := &capturePublisher{}
	srv := NewServer("", nil, pub, nil)

	rec := postWebhook(t, srv, commentPayload, map[string]string{
		"X-GitHub-Event": "issue_comment",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.events, 1)
	assert.NotEmpty(t, pub.events[0].DeliveryID)
}

func TestServer_Healthz(t *testing.T) {
	srv := NewServer("", nil, &capturePublisher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestValidateSignature(t *testing.T) {
	payload := []byte("payload bytes")

	t.Run("valid", func(t *testing.T) {
		header := sign("secret", string(payload))
		assert.NoError(t, ValidateSignature("secret", payload, header))
	})

	t.Run("missing header", func(t *testing.T) {
		err := ValidateSignature("secret", payload, "")
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		err := ValidateSignature("secret", payload, "sha1=abcdef")
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := sign("secret", string(payload))
		err := ValidateSignature("secret", []byte("other bytes"), header)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("bad hex", func(t *testing.T) {
		err := ValidateSignature("secret", payload, "sha256=zzzz")
		assert.ErrorIs(t, err, ErrBadSignature)
	})
}
