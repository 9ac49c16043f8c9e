package ranking

import (
	"context"
	"fmt"

	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/logging"
	"github.com/skillforge/skillforge/internal/metrics"
)

// ReviewStatus is the outcome of a submission review.
type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewEvent describes a submission leaving the pending state.
type ReviewEvent struct {
	SubmissionID string
	UserID       string
	ProjectID    string
	Category     string
	Status       ReviewStatus
}

// HandleReviewTransition is called when a review moves a submission
// out of pending. It drops every cached board and user rank, then
// recomputes the affected boards and pushes their top entries plus
// stats to the real-time layer. Recompute failures propagate; the
// invalidation itself has already happened by then, so later reads
// stay correct either way.
func (e *Engine) HandleReviewTransition(ctx context.Context, event ReviewEvent) error {
	dropped := e.facade.DelPattern(ctx, leaderboardPrefix+":*", cache.Options{})
	dropped += e.facade.DelPattern(ctx, userRankPrefix+":*", cache.Options{})
	logging.Op().Debug("leaderboard caches invalidated",
		"submission", event.SubmissionID, "dropped", dropped)

	scopes := []Scope{Overall}
	if event.ProjectID != "" {
		scopes = append(scopes, ProjectScope(event.ProjectID))
	}
	if event.Category != "" {
		scopes = append(scopes, CategoryScope(event.Category))
	}

	stats, err := e.BoardStats(ctx)
	if err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}

	for _, scope := range scopes {
		entries, err := e.Leaderboard(ctx, scope, RangeAll)
		if err != nil {
			return fmt.Errorf("refresh %s board: %w", scope, err)
		}
		if len(entries) > e.topN {
			entries = entries[:e.topN]
		}
		if err := e.broadcaster.BroadcastLeaderboard(ctx, scope, RangeAll, entries, stats); err != nil {
			// The boards are already refreshed; a dropped broadcast
			// only delays the push until the next event.
			logging.Op().Warn("leaderboard broadcast failed",
				"scope", scope.String(), "error", err)
			metrics.RecordBroadcast("error")
			continue
		}
		metrics.RecordBroadcast("ok")
	}
	return nil
}
