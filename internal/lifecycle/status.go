// Package lifecycle creates, validates and moderates orders and deposit
// requests, and announces every committed change.
package lifecycle

import "topup-store/internal/repo"

var validNext = map[repo.Status]map[repo.Status]bool{
	repo.StatusPending: {
		repo.StatusApproved: true,
		repo.StatusRejected: true,
	},
}

// CanTransition reports whether an admin may move a row from one status to another.
func CanTransition(from, to repo.Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s repo.Status) bool {
	return len(validNext[s]) == 0
}

// DisplayStatus folds completed into approved; both mean the request was fulfilled.
func DisplayStatus(s repo.Status) repo.Status {
	if s == repo.StatusCompleted {
		return repo.StatusApproved
	}
	return s
}

// IsFulfilled reports whether s counts as a successful outcome.
func IsFulfilled(s repo.Status) bool {
	return DisplayStatus(s) == repo.StatusApproved
}

// KnownStatus reports whether s is one of the stored statuses.
func KnownStatus(s repo.Status) bool {
	switch s {
	case repo.StatusPending, repo.StatusApproved, repo.StatusRejected, repo.StatusCompleted:
		return true
	}
	return false
}
