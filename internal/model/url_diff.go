package model

import "slices"

// URLDiff is the difference between the visited sets of two runs.
type URLDiff struct {
	// Added lists URLs present only in the newer run.
	Added []CanonicalURL `json:"added"`

	// Removed lists URLs present only in the older run.
	Removed []CanonicalURL `json:"removed"`

	// Unchanged is the number of URLs present in both runs.
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether the two sets differ.
func (d URLDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// DiffURLs compares two URL sets. Inputs need not be sorted; the result is.
func DiffURLs(older, newer []CanonicalURL) URLDiff {
	oldSet := make(map[CanonicalURL]struct{}, len(older))
	for _, u := range older {
		oldSet[u] = struct{}{}
	}
	newSet := make(map[CanonicalURL]struct{}, len(newer))
	for _, u := range newer {
		newSet[u] = struct{}{}
	}

	diff := URLDiff{
		Added:   make([]CanonicalURL, 0),
		Removed: make([]CanonicalURL, 0),
	}
	for u := range newSet {
		if _, ok := oldSet[u]; ok {
			diff.Unchanged++
			continue
		}
		diff.Added = append(diff.Added, u)
	}
	for u := range oldSet {
		if _, ok := newSet[u]; !ok {
			diff.Removed = append(diff.Removed, u)
		}
	}

	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	return diff
}
