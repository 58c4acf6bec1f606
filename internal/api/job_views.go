package api

import "sort"

// SortJobsNewestFirst orders jobs by CreatedAt descending, breaking ties by ID descending.
func SortJobsNewestFirst(items []JobItem) []JobItem {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]JobItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		ti := ParseTime(sorted[i].CreatedAt)
		tj := ParseTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}
