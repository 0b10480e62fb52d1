package api

import (
	"sort"
	"time"
)

// SortJobsNewestFirst orders jobs by CreatedAt descending, breaking ties by
// ID descending.
func SortJobsNewestFirst(jobs []JobView) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]JobView, len(jobs))
	copy(sorted, jobs)
	sort.Slice(sorted, func(i, j int) bool {
		ti := ParseAPITime(sorted[i].CreatedAt)
		tj := ParseAPITime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

// ParseAPITime parses an API timestamp for display formatting. Unparseable
// values return the zero time.
func ParseAPITime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
