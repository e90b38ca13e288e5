package propagation

import (
	"time"

	"warden/pkg/domain"
)

// Status is the outcome for one group.
type Status string

const (
	StatusGranted     Status = "granted"
	StatusAlreadyHeld Status = "already_held"
	StatusSkipped     Status = "skipped"
	StatusFailed      Status = "failed"
)

// InviteStatus is the outcome of primary-group admission.
type InviteStatus string

const (
	InviteNotConfigured InviteStatus = "not_configured"
	InviteAlreadyMember InviteStatus = "already_member"
	InviteSent          InviteStatus = "sent"
	InviteFailed        InviteStatus = "failed"
)

// Invite is a single-use admission link to a group.
type Invite struct {
	GroupID   domain.GroupID
	URL       string
	MaxUses   int
	ExpiresAt time.Time
}

// GroupResult is the marker outcome for one group.
type GroupResult struct {
	GroupID  domain.GroupID
	MarkerID domain.MarkerID
	Status   Status
	Err      error
}

// InviteResult is the outcome of primary-group admission.
type InviteResult struct {
	GroupID domain.GroupID
	Status  InviteStatus
	Invite  *Invite
	Err     error
}

// Report aggregates one propagation run. Failures never abort the run; they
// are recorded per group.
type Report struct {
	UserID  domain.UserID
	Groups  []GroupResult
	Primary InviteResult
	// ListErr is set when the auto-grant group list could not be loaded.
	ListErr error
}

// Granted counts groups where the marker was newly granted.
func (r Report) Granted() int {
	n := 0
	for _, g := range r.Groups {
		if g.Status == StatusGranted {
			n++
		}
	}
	return n
}

// Failed returns the groups where granting failed.
func (r Report) Failed() []GroupResult {
	var failed []GroupResult
	for _, g := range r.Groups {
		if g.Status == StatusFailed {
			failed = append(failed, g)
		}
	}
	return failed
}

// OK reports whether every step succeeded.
func (r Report) OK() bool {
	return r.ListErr == nil && len(r.Failed()) == 0 && r.Primary.Status != InviteFailed
}
