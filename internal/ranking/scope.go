package ranking

import (
	"fmt"
	"strings"
	"time"
)

// ScopeKind is the aggregation boundary of a leaderboard.
type ScopeKind string

const (
	ScopeOverall  ScopeKind = "overall"
	ScopeProject  ScopeKind = "project"
	ScopeCategory ScopeKind = "category"
)

// Scope selects which submissions a leaderboard aggregates: the whole
// platform, one project, or one category.
type Scope struct {
	Kind ScopeKind
	ID   string // project id or category name; empty for overall
}

// Overall is the platform-wide scope.
var Overall = Scope{Kind: ScopeOverall}

// ProjectScope returns the scope for a single project.
func ProjectScope(id string) Scope {
	return Scope{Kind: ScopeProject, ID: id}
}

// CategoryScope returns the scope for a single category.
func CategoryScope(name string) Scope {
	return Scope{Kind: ScopeCategory, ID: name}
}

// ParseScope parses "overall", "project:<id>", or "category:<name>".
func ParseScope(s string) (Scope, error) {
	if s == "" || s == string(ScopeOverall) {
		return Overall, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Scope{}, fmt.Errorf("invalid scope %q", s)
	}
	switch ScopeKind(kind) {
	case ScopeProject:
		return ProjectScope(id), nil
	case ScopeCategory:
		return CategoryScope(id), nil
	default:
		return Scope{}, fmt.Errorf("invalid scope kind %q", kind)
	}
}

func (s Scope) String() string {
	if s.Kind == ScopeOverall || s.Kind == "" {
		return string(ScopeOverall)
	}
	return string(s.Kind) + ":" + s.ID
}

// CacheTTL returns how long a computed board for this scope stays
// cached. Narrow scopes change faster relative to their audience, so
// they get the shorter TTL.
func (s Scope) CacheTTL() time.Duration {
	if s.Kind == ScopeOverall || s.Kind == "" {
		return 300 * time.Second
	}
	return 120 * time.Second
}

// TimeRange filters submissions by age.
type TimeRange string

const (
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeAll   TimeRange = "all"
)

// ParseTimeRange parses "week", "month", or "all" (default).
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case RangeWeek, RangeMonth, RangeAll:
		return TimeRange(s), nil
	case "":
		return RangeAll, nil
	default:
		return "", fmt.Errorf("invalid time range %q", s)
	}
}

// Since returns the submission cutoff for the range, or the zero time
// when the range applies no filter.
func (r TimeRange) Since(now time.Time) time.Time {
	switch r {
	case RangeWeek:
		return now.Add(-7 * 24 * time.Hour)
	case RangeMonth:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}
