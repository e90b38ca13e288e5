package verification

import (
	"fmt"
	"time"

	"warden/internal/propagation"
	"warden/internal/screen"
	"warden/pkg/domain"
	"warden/pkg/platform/audit"
)

// Rejection and attempt reasons written to the audit history.
const (
	ReasonAlreadyVerified = "already verified"
	ReasonRateLimited     = "rate limited"
	ReasonAlreadyPending  = "already pending"
	ReasonSuccess         = "success"
	ReasonTimeout         = "timeout"
	ReasonCancelled       = "cancelled"
	securityFailedPrefix  = "security failed: "
)

// Choice is the user's answer to a confirmation prompt.
type Choice string

const (
	ChoiceAccept  Choice = "accept"
	ChoiceDecline Choice = "decline"
)

// Outcome is how an event resolved a session.
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeExpired   Outcome = "expired"
	// OutcomeIgnored means there was no matching pending session.
	OutcomeIgnored Outcome = "ignored"
)

// StartRequest asks to begin verification for one user.
type StartRequest struct {
	UserID domain.UserID
	// GroupID is the group the request came from; its policy applies.
	GroupID domain.GroupID
	// ChannelID is the fallback prompt destination when a DM fails.
	ChannelID domain.ChannelID
	Snapshot  screen.Snapshot
}

// Requirements are shown to the user alongside the prompt.
type Requirements struct {
	MinAccountAgeDays int
	Timeout           time.Duration
}

// StartResult is returned for a successful start.
type StartResult struct {
	Token        string
	ExpiresAt    time.Time
	AttemptCount int
	Requirements Requirements
}

// RejectedError is returned when a start is refused. It is always audited.
type RejectedError struct {
	Reason string
	// Issues holds the screen findings for a security rejection.
	Issues []string
	// RetryAt is set for rate limit rejections.
	RetryAt time.Time
}

func (e *RejectedError) Error() string {
	return "verification rejected: " + e.Reason
}

func securityRejection(issues []string) *RejectedError {
	return &RejectedError{Reason: securityFailedPrefix + screen.Summary(issues), Issues: issues}
}

// ConfirmResult is returned by Confirm, Cancel and Expire.
type ConfirmResult struct {
	Outcome    Outcome
	VerifiedAt time.Time
	Report     *propagation.Report
}

// ForceResult is returned by ForceVerify.
type ForceResult struct {
	Record audit.Record
	Report propagation.Report
	// ClearedPending is true when a pending session was discarded.
	ClearedPending bool
}

// Stats is the administrator summary.
type Stats struct {
	TotalVerified int
	Pending       int
	FailedLastDay int
}

// Prompt is delivered to the user after a successful start.
type Prompt struct {
	UserID    domain.UserID
	GroupID   domain.GroupID
	ChannelID domain.ChannelID
	Username  string
	Token     string
	ExpiresAt time.Time
	Timeout   time.Duration
	// Requirements are shown with the prompt.
	Requirements Requirements
}

// Notice tells the user how their session resolved.
type Notice struct {
	UserID    domain.UserID
	GroupID   domain.GroupID
	ChannelID domain.ChannelID
	Outcome   Outcome
	Report    *propagation.Report
}

func forceReason(actor domain.UserID) string {
	if actor.IsNil() {
		return "force verified"
	}
	return fmt.Sprintf("force verified by %s", actor)
}
