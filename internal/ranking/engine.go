// Package ranking computes ordered leaderboards from submission
// aggregates. Boards are cached per (scope, time range) as one
// complete ordered list and invalidated wholesale when a submission
// review lands; partial updates never happen.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/metrics"
	"github.com/skillforge/skillforge/internal/observability"
)

// UserAggregate is the per-user rollup the data source produces for a
// scope and time filter. Ordering is applied here, not in the source.
type UserAggregate struct {
	UserID              string     `json:"userId"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	AvatarURL           string     `json:"avatarUrl"`
	TotalScore          int64      `json:"totalScore"`
	TotalSubmissions    int        `json:"totalSubmissions"`
	ApprovedSubmissions int        `json:"approvedSubmissions"`
	AverageScore        float64    `json:"averageScore"`
	BadgeCount          int        `json:"badgeCount"`
	LastSubmissionAt    *time.Time `json:"lastSubmissionAt"`
}

// Entry is one ranked leaderboard row.
type Entry struct {
	UserAggregate
	Rank int `json:"rank"`
}

// UserRank is the standing of a single user on the overall board.
type UserRank struct {
	TotalScore          int64   `json:"totalScore"`
	TotalSubmissions    int     `json:"totalSubmissions"`
	ApprovedSubmissions int     `json:"approvedSubmissions"`
	AverageScore        float64 `json:"averageScore"`
	Rank                int     `json:"rank"`
}

// Stats are the aggregate figures shown next to a board.
type Stats struct {
	TotalUsers       int     `json:"totalUsers"`
	TotalSubmissions int     `json:"totalSubmissions"`
	AverageScore     float64 `json:"averageScore"`
	TopScore         int64   `json:"topScore"`
}

// SubmissionSource is the external data collaborator. It returns one
// aggregate per user who has submissions within scope after since
// (zero since means no time filter).
type SubmissionSource interface {
	UserAggregates(ctx context.Context, scope Scope, since time.Time) ([]UserAggregate, error)
}

// Broadcaster pushes refreshed boards to the real-time layer.
type Broadcaster interface {
	BroadcastLeaderboard(ctx context.Context, scope Scope, rng TimeRange, entries []Entry, stats Stats) error
}

const (
	leaderboardPrefix = "leaderboard"
	userRankPrefix    = "userrank"
	statsKey          = "leaderboard:stats"

	userRankTTL = 300 * time.Second

	// DefaultTopN is how many entries a broadcast carries.
	DefaultTopN = 10
)

// Engine computes and caches leaderboards.
type Engine struct {
	source      SubmissionSource
	facade      *cache.Facade
	broadcaster Broadcaster
	topN        int
}

// NewEngine creates a ranking engine. broadcaster may not be nil; use
// broadcast.Nop for deployments without a real-time layer.
func NewEngine(source SubmissionSource, facade *cache.Facade, broadcaster Broadcaster, topN int) *Engine {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Engine{
		source:      source,
		facade:      facade,
		broadcaster: broadcaster,
		topN:        topN,
	}
}

// Leaderboard returns the complete ranked board for (scope, rng),
// computing it through the cache-aside facade. Source failures
// propagate to the caller.
func (e *Engine) Leaderboard(ctx context.Context, scope Scope, rng TimeRange) ([]Entry, error) {
	opts := cache.Options{KeyPrefix: leaderboardPrefix, TTL: scope.CacheTTL()}
	key := scope.String() + ":" + string(rng)
	return cache.GetOrSet(ctx, e.facade, key, func(ctx context.Context) ([]Entry, error) {
		return e.compute(ctx, scope, rng)
	}, opts)
}

// LeaderboardPage returns one page of the board. Ranking always runs
// over the full scope first; pagination only slices the result.
func (e *Engine) LeaderboardPage(ctx context.Context, scope Scope, rng TimeRange, page, pageSize int) ([]Entry, int, error) {
	entries, err := e.Leaderboard(ctx, scope, rng)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(entries) {
		return []Entry{}, len(entries), nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], len(entries), nil
}

// UserRank returns userID's standing on the overall all-time board.
func (e *Engine) UserRank(ctx context.Context, userID string) (UserRank, error) {
	opts := cache.Options{KeyPrefix: userRankPrefix, TTL: userRankTTL}
	return cache.GetOrSet(ctx, e.facade, userID, func(ctx context.Context) (UserRank, error) {
		entries, err := e.Leaderboard(ctx, Overall, RangeAll)
		if err != nil {
			return UserRank{}, err
		}
		for _, entry := range entries {
			if entry.UserID == userID {
				return UserRank{
					TotalScore:          entry.TotalScore,
					TotalSubmissions:    entry.TotalSubmissions,
					ApprovedSubmissions: entry.ApprovedSubmissions,
					AverageScore:        entry.AverageScore,
					Rank:                entry.Rank,
				}, nil
			}
		}
		// Users without submissions are unranked.
		return UserRank{}, nil
	}, opts)
}

// BoardStats returns the aggregate figures for the overall board.
func (e *Engine) BoardStats(ctx context.Context) (Stats, error) {
	opts := cache.Options{TTL: Overall.CacheTTL()}
	return cache.GetOrSet(ctx, e.facade, statsKey, func(ctx context.Context) (Stats, error) {
		entries, err := e.Leaderboard(ctx, Overall, RangeAll)
		if err != nil {
			return Stats{}, err
		}
		return statsOf(entries), nil
	}, opts)
}

// compute fetches aggregates and assigns ranks. The sort is stable:
// users fully tied on all three keys keep the order the source
// returned them in.
func (e *Engine) compute(ctx context.Context, scope Scope, rng TimeRange) ([]Entry, error) {
	ctx, span := observability.StartSpan(ctx, "ranking.compute",
		attribute.String("scope", scope.String()),
		attribute.String("range", string(rng)),
	)
	defer span.End()

	start := time.Now()
	aggregates, err := e.source.UserAggregates(ctx, scope, rng.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("compute leaderboard %s/%s: %w", scope, rng, err)
	}

	entries := Rank(aggregates)
	metrics.RecordLeaderboardCompute(string(scope.Kind), time.Since(start).Seconds())
	return entries, nil
}

// Rank sorts aggregates by total score, then approved submissions,
// then average score (all descending) and assigns 1-based positional
// ranks. Ties never share a rank number.
func Rank(aggregates []UserAggregate) []Entry {
	sorted := make([]UserAggregate, len(aggregates))
	copy(sorted, aggregates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.ApprovedSubmissions != b.ApprovedSubmissions {
			return a.ApprovedSubmissions > b.ApprovedSubmissions
		}
		return a.AverageScore > b.AverageScore
	})

	entries := make([]Entry, len(sorted))
	for i, agg := range sorted {
		entries[i] = Entry{UserAggregate: agg, Rank: i + 1}
	}
	return entries
}

func statsOf(entries []Entry) Stats {
	stats := Stats{TotalUsers: len(entries)}
	var scoreSum int64
	for _, entry := range entries {
		stats.TotalSubmissions += entry.TotalSubmissions
		scoreSum += entry.TotalScore
		if entry.TotalScore > stats.TopScore {
			stats.TopScore = entry.TotalScore
		}
	}
	if len(entries) > 0 {
		stats.AverageScore = float64(scoreSum) / float64(len(entries))
	}
	return stats
}
