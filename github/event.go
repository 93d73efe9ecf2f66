package github

import (
	"github.com/notebot-io/notebot/document"
)

// WebhookPayload is the subset of the issue_comment webhook delivery
// the bot consumes.
type WebhookPayload struct {
	Action     string `json:"action"`
	Issue      *struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	} `json:"issue"`
	Comment *struct {
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
	Repository *struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

// CommentEvent is the normalized comment event published on the event
// stream and consumed by the note handler.
type CommentEvent struct {
	DeliveryID string `json:"delivery_id"`
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Number     int    `json:"number"`
	Author     string `json:"author"`
	CommentURL string `json:"comment_url"`
	Body       string `json:"body"`
}

// Ref returns the target document reference.
func (e CommentEvent) Ref() document.Ref {
	return document.Ref{Owner: e.Owner, Repo: e.Repo, Number: e.Number}
}

// ToCommentEvent normalizes a webhook payload. The second return value
// is false when the payload is missing the fields a comment event
// needs (e.g. a non-comment delivery).
func (p *WebhookPayload) ToCommentEvent(deliveryID string) (CommentEvent, bool) {
	if p.Issue == nil || p.Comment == nil || p.Repository == nil {
		return CommentEvent{}, false
	}
	return CommentEvent{
		DeliveryID: deliveryID,
		Owner:      p.Repository.Owner.Login,
		Repo:       p.Repository.Name,
		Number:     p.Issue.Number,
		Author:     p.Comment.User.Login,
		CommentURL: p.Comment.HTMLURL,
		Body:       p.Comment.Body,
	}, true
}
