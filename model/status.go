package model

import "strings"

// Status families reported by the upstream engine. Matching is
// case-insensitive against the raw status string; "submitted" counts as
// active so a just-created request is pollable.
var (
	completedStatuses = map[string]struct{}{
		"completed": {},
		"done":      {},
		"succeeded": {},
	}
	failedStatuses = map[string]struct{}{
		"failed":   {},
		"error":    {},
		"rejected": {},
	}
	activeStatuses = map[string]struct{}{
		"submitted":  {},
		"running":    {},
		"pending":    {},
		"queued":     {},
		"processing": {},
	}
)

// IsCompleted reports whether status is in the completed family.
func IsCompleted(status string) bool {
	_, ok := completedStatuses[strings.ToLower(status)]
	return ok
}

// IsFailed reports whether status is in the failed family.
func IsFailed(status string) bool {
	_, ok := failedStatuses[strings.ToLower(status)]
	return ok
}

// IsActive reports whether status is still in flight and worth polling.
func IsActive(status string) bool {
	_, ok := activeStatuses[strings.ToLower(status)]
	return ok
}

// IsTerminal reports whether no further status transition will occur.
func IsTerminal(status string) bool {
	return IsCompleted(status) || IsFailed(status)
}
