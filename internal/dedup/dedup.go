// Package dedup implements the Dedup Oracle (C9): it inspects a pull
// request's existing comments for a recent bot summary so the Orchestrator
// can skip a redundant automatic review.
package dedup

import (
	"context"
	"strings"
	"time"

	"github.com/codecritics/codecritic/internal/domain"
	"github.com/codecritics/codecritic/internal/hostclient"
)

const recentWindow = time.Hour

// Oracle answers whether a pull request already has a recent bot summary.
type Oracle struct {
	host hostclient.Client
}

func NewOracle(host hostclient.Client) *Oracle {
	return &Oracle{host: host}
}

// IsDuplicate lists the pull request's comments and reports whether the most
// recent bot summary (one containing domain.MarkerSummary) falls within the
// recency window. Only an Auto trigger treats a true result as a skip
// condition; the Orchestrator is responsible for that policy decision.
func (o *Oracle) IsDuplicate(ctx context.Context, owner, repo string, number int) (bool, error) {
	comments, err := o.host.ListPRComments(ctx, owner, repo, number)
	if err != nil {
		return false, err
	}

	summary, ok := mostRecentSummary(comments)
	if !ok {
		return false, nil
	}

	ts, ok := domain.ParseTimestampMarker(summary.Body)
	if !ok {
		return false, nil
	}

	age := time.Since(time.UnixMilli(ts))
	return age >= 0 && age <= recentWindow, nil
}

// mostRecentSummary returns the latest comment (by CreatedAt) whose body
// carries the bot summary marker.
func mostRecentSummary(comments []domain.Comment) (domain.Comment, bool) {
	var best domain.Comment
	found := false
	for _, c := range comments {
		if !containsMarker(c.Body) {
			continue
		}
		if !found || c.CreatedAt > best.CreatedAt {
			best = c
			found = true
		}
	}
	return best, found
}

func containsMarker(body string) bool {
	return strings.Contains(body, domain.MarkerSummary)
}
