package models

import (
	"strings"
	"time"

	"warden/pkg/domain"
)

// Policy bounds verification starts per user.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Window is the state of one user's trailing window after pruning.
type Window struct {
	Count  int
	Oldest time.Time
}

// Result is returned by Check and Record.
//
// ResetAt is when the oldest counted attempt leaves the window; it equals the
// evaluation time when the window is empty.
type Result struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// Remaining is how many more starts the window admits.
func (r Result) Remaining() int {
	if r.Count >= r.Limit {
		return 0
	}
	return r.Limit - r.Count
}

// NewResult derives a result from a pruned window.
func NewResult(w Window, p Policy, now time.Time) Result {
	resetAt := now
	if w.Count > 0 {
		resetAt = w.Oldest.Add(p.Window)
	}
	return Result{
		Allowed: w.Count < p.MaxAttempts,
		Count:   w.Count,
		Limit:   p.MaxAttempts,
		ResetAt: resetAt,
	}
}

// VerificationKey is the window key for a user's verification starts.
func VerificationKey(userID domain.UserID) string {
	return "verify:" + SanitizeKeySegment(userID.String())
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit windows.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
