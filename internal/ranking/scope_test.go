package ranking

import (
	"testing"
	"time"
)

func TestParseScope(t *testing.T) {
	cases := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", Overall, false},
		{"overall", Overall, false},
		{"project:p1", ProjectScope("p1"), false},
		{"category:backend", CategoryScope("backend"), false},
		{"project:", Scope{}, true},
		{"team:x", Scope{}, true},
		{"bogus", Scope{}, true},
	}
	for _, tc := range cases {
		got, err := ParseScope(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseScope(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseScope(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseScope(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestScopeString(t *testing.T) {
	if got := Overall.String(); got != "overall" {
		t.Errorf("Overall.String() = %q", got)
	}
	if got := ProjectScope("p1").String(); got != "project:p1" {
		t.Errorf("project scope string = %q", got)
	}
	if got := (Scope{}).String(); got != "overall" {
		t.Errorf("zero scope should read as overall, got %q", got)
	}
}

func TestScopeCacheTTL(t *testing.T) {
	if got := Overall.CacheTTL(); got != 300*time.Second {
		t.Errorf("overall TTL = %v", got)
	}
	if got := ProjectScope("p1").CacheTTL(); got != 120*time.Second {
		t.Errorf("project TTL = %v", got)
	}
	if got := CategoryScope("x").CacheTTL(); got != 120*time.Second {
		t.Errorf("category TTL = %v", got)
	}
}

func TestParseTimeRange(t *testing.T) {
	for in, want := range map[string]TimeRange{
		"":      RangeAll,
		"all":   RangeAll,
		"week":  RangeWeek,
		"month": RangeMonth,
	} {
		got, err := ParseTimeRange(in)
		if err != nil {
			t.Errorf("ParseTimeRange(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseTimeRange(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseTimeRange("year"); err == nil {
		t.Error("expected invalid range to error")
	}
}

func TestTimeRangeSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := RangeWeek.Since(now); !got.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Errorf("week cutoff = %v", got)
	}
	if got := RangeMonth.Since(now); !got.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Errorf("month cutoff = %v", got)
	}
	if got := RangeAll.Since(now); !got.IsZero() {
		t.Errorf("all range must not filter, got %v", got)
	}
}
