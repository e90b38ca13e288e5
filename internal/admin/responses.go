package admin

import (
	"time"

	"warden/internal/propagation"
	"warden/pkg/platform/audit"
)

// StatsResponse is the HTTP response DTO for verification stats.
type StatsResponse struct {
	TotalVerified int `json:"total_verified"`
	Pending       int `json:"pending"`
	FailedLastDay int `json:"failed_last_24h"`
}

// AuditEntryResponse is one audit row.
type AuditEntryResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Action    string    `json:"action"`
	UserID    string    `json:"user_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	GroupID   string    `json:"group_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Success   bool      `json:"success"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditLogResponse wraps the audit rows for HTTP response.
type AuditLogResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
	Total   int                  `json:"total"`
}

// UserResponse reports a user's verified flag.
type UserResponse struct {
	UserID     string     `json:"user_id"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// GroupOutcome is one group's propagation result.
type GroupOutcome struct {
	GroupID string `json:"group_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// ForceVerifyRequest is the body of POST /admin/users/{userID}/verify.
type ForceVerifyRequest struct {
	GroupID string `json:"group_id"`
}

// ForceVerifyResponse summarizes a forced verification.
type ForceVerifyResponse struct {
	UserResponse
	ClearedPending bool           `json:"cleared_pending"`
	Groups         []GroupOutcome `json:"groups"`
	Invite         string         `json:"primary_invite"`
}

func toAuditLogResponse(entries []audit.Entry) AuditLogResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:        e.ID.String(),
			Kind:      string(e.Kind),
			Action:    e.Action,
			UserID:    e.UserID.String(),
			ActorID:   e.ActorID.String(),
			GroupID:   e.GroupID.String(),
			Username:  e.Username,
			Success:   e.Success,
			Details:   e.Details,
			Timestamp: e.Timestamp,
		}
	}
	return AuditLogResponse{Entries: out, Total: len(out)}
}

func toUserResponse(rec audit.Record) UserResponse {
	res := UserResponse{UserID: rec.UserID.String(), Verified: rec.Verified}
	if rec.Verified {
		at := rec.VerifiedAt
		res.VerifiedAt = &at
	}
	return res
}

func toGroupOutcomes(results []propagation.GroupResult) []GroupOutcome {
	out := make([]GroupOutcome, len(results))
	for i, r := range results {
		out[i] = GroupOutcome{GroupID: r.GroupID.String(), Status: string(r.Status)}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}
