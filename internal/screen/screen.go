// Package screen evaluates a user snapshot against a group's verification
// policy. Evaluate is pure: the same snapshot and policy always yield the
// same issues.
package screen

import (
	"fmt"
	"strings"
	"time"

	"warden/pkg/domain"
)

const (
	IssueNoAvatar         = "No profile picture"
	IssueSuspiciousName   = "Suspicious username pattern"
	minNumericSuffixDigit = 4
)

// denylist holds lowercase substrings typical of throwaway or automated
// accounts.
var denylist = []string{"bot", "1234", "temp", "test", "fake"}

// Snapshot is what the transport observed about a user at request time.
type Snapshot struct {
	UserID      domain.UserID
	Username    string
	DisplayName string
	CreatedAt   time.Time
	HasAvatar   bool
	// ObservedAt is the evaluation clock.
	ObservedAt time.Time
}

// AccountAgeDays is the account age in whole days at ObservedAt.
func (s Snapshot) AccountAgeDays() int {
	if s.CreatedAt.IsZero() || s.ObservedAt.Before(s.CreatedAt) {
		return 0
	}
	return int(s.ObservedAt.Sub(s.CreatedAt) / (24 * time.Hour))
}

// Policy is the subset of a group policy the screen reads.
type Policy struct {
	MinAccountAgeDays int
}

// Evaluate returns every issue found, in a fixed order. An empty result is a
// pass.
func Evaluate(s Snapshot, p Policy) []string {
	var issues []string

	if age := s.AccountAgeDays(); age < p.MinAccountAgeDays {
		issues = append(issues, fmt.Sprintf("Account too new (%d days old, minimum %d)", age, p.MinAccountAgeDays))
	}
	if !s.HasAvatar {
		issues = append(issues, IssueNoAvatar)
	}
	if suspiciousName(s.Username) || suspiciousName(s.DisplayName) {
		issues = append(issues, IssueSuspiciousName)
	}
	return issues
}

// Summary joins issues the way rejection reasons present them.
func Summary(issues []string) string {
	return strings.Join(issues, "; ")
}

func suspiciousName(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, pattern := range denylist {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return numericSuffixLen(lower) >= minNumericSuffixDigit
}

func numericSuffixLen(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		n++
	}
	return n
}
