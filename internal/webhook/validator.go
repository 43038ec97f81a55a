// Package webhook implements the Payload Validator (C3) and the front-door
// Dispatcher (C12): header parsing, signature check, envelope
// classification, fast ACK, and async hand-off to the Orchestrator.
package webhook

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/codecritics/codecritic/internal/domain"
)

const mentionToken = "@codecritics"

// ValidationError carries the field-level errors returned in a 400 response.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s", strings.Join(e.Details, "; "))
}

// Validate classifies a raw webhook body into an Event Envelope, or returns
// a *ValidationError listing the structural problems found.
//
// Classification rules:
//   - pull_request with action in {opened, synchronize, reopened} -> PRChanged
//   - issue_comment with action=created, issue.pull_request present, and a
//     body containing the lowercase mention token -> MentionComment
//   - ping -> Ping
//   - everything else -> Other (ignored with 202 by the Dispatcher)
func Validate(eventHeader string, body []byte) (domain.Envelope, error) {
	if !gjson.ValidBytes(body) {
		return domain.Envelope{}, &ValidationError{Details: []string{"body is not valid JSON"}}
	}

	root := gjson.ParseBytes(body)

	if eventHeader == "ping" {
		return domain.Envelope{EventKind: domain.EventPing}, nil
	}

	var errs []string

	action := root.Get("action").String()
	fullName := root.Get("repository.full_name").String()
	if !root.Get("action").Exists() {
		errs = append(errs, "missing required field: action")
	}
	if fullName == "" {
		errs = append(errs, "missing required field: repository.full_name")
	}
	if len(errs) > 0 {
		return domain.Envelope{}, &ValidationError{Details: errs}
	}

	repo := domain.Repo{
		FullName: fullName,
		Private:  root.Get("repository.private").Bool(),
	}
	if parts := strings.SplitN(fullName, "/", 2); len(parts) == 2 {
		repo.Owner, repo.Name = parts[0], parts[1]
	}

	switch eventHeader {
	case "pull_request":
		if action != "opened" && action != "synchronize" && action != "reopened" {
			return domain.Envelope{EventKind: domain.EventOther, Action: action, Repo: repo}, nil
		}
		if !root.Get("pull_request.number").Exists() {
			return domain.Envelope{}, &ValidationError{Details: []string{"missing required field: pull_request.number"}}
		}
		diffURL := root.Get("pull_request.diff_url").String()
		if diffURL == "" {
			return domain.Envelope{}, &ValidationError{Details: []string{"missing required field: pull_request.diff_url"}}
		}
		return domain.Envelope{
			EventKind:  domain.EventPRChanged,
			Action:     action,
			Repo:       repo,
			PullNumber: int(root.Get("pull_request.number").Int()),
			DiffURL:    diffURL,
			HeadSHA:    root.Get("pull_request.head.sha").String(),
		}, nil

	case "issue_comment":
		if action != "created" || !root.Get("issue.pull_request").Exists() {
			return domain.Envelope{EventKind: domain.EventOther, Action: action, Repo: repo}, nil
		}
		commentBody := root.Get("comment.body").String()
		if !strings.Contains(strings.ToLower(commentBody), mentionToken) {
			return domain.Envelope{EventKind: domain.EventOther, Action: action, Repo: repo}, nil
		}
		if !root.Get("issue.number").Exists() {
			return domain.Envelope{}, &ValidationError{Details: []string{"missing required field: issue.number"}}
		}
		return domain.Envelope{
			EventKind:   domain.EventMentionComment,
			Action:      action,
			Repo:        repo,
			PullNumber:  int(root.Get("issue.number").Int()),
			CommentBody: commentBody,
			Commenter:   root.Get("comment.user.login").String(),
		}, nil

	default:
		return domain.Envelope{EventKind: domain.EventOther, Action: action, Repo: repo}, nil
	}
}
