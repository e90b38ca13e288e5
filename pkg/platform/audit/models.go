package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"warden/pkg/domain"
)

// EventCategory classifies audit entries by their primary purpose.
// Relays use it to route entries to downstream consumers.
type EventCategory string

const (
	// CategoryCompliance covers entries that prove who was admitted and why:
	// successful verifications and administrative overrides.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or abandoned verification attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine bot lifecycle and configuration entries.
	CategoryOperations EventCategory = "operations"
)

// Kind distinguishes the two append-only streams merged by List.
type Kind string

const (
	KindAttempt Kind = "attempt"
	KindAction  Kind = "action"
)

// Attempt is one verification outcome for one user. Immutable once written.
type Attempt struct {
	ID        uuid.UUID
	UserID    domain.UserID
	GroupID   domain.GroupID
	Username  string
	Success   bool
	Reason    string
	PseudoID  string
	Timestamp time.Time
}

// Category routes successful attempts as compliance and failures as security.
func (a Attempt) Category() EventCategory {
	if a.Success {
		return CategoryCompliance
	}
	return CategorySecurity
}

// ActionType names an administrative or system action.
type ActionType string

const (
	ActionForceVerify          ActionType = "FORCE_VERIFY"
	ActionGroupConfigured      ActionType = "GROUP_CONFIGURED"
	ActionGroupJoined          ActionType = "BOT_JOINED_GROUP"
	ActionGroupLeft            ActionType = "BOT_LEFT_GROUP"
	ActionAutoGrant            ActionType = "AUTO_GRANT"
	ActionPromptDeliveryFailed ActionType = "PROMPT_DELIVERY_FAILED"
	ActionCommandError         ActionType = "COMMAND_ERROR"
)

var actionCategories = map[ActionType]EventCategory{
	ActionForceVerify:          CategoryCompliance,
	ActionGroupConfigured:      CategoryOperations,
	ActionGroupJoined:          CategoryOperations,
	ActionGroupLeft:            CategoryOperations,
	ActionAutoGrant:            CategoryCompliance,
	ActionPromptDeliveryFailed: CategoryOperations,
	ActionCommandError:         CategoryOperations,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (t ActionType) Category() EventCategory {
	if cat, ok := actionCategories[t]; ok {
		return cat
	}
	return CategoryOperations
}

// Action is an administrative or system action. ActorID is empty for
// actions the bot takes on its own.
type Action struct {
	ID        uuid.UUID
	Type      ActionType
	ActorID   domain.UserID
	UserID    domain.UserID
	GroupID   domain.GroupID
	Success   bool
	Details   string
	Timestamp time.Time
}

// Record is the durable verified flag for a user.
type Record struct {
	UserID     domain.UserID
	Verified   bool
	VerifiedAt time.Time
}

// Entry is the read model returned by List: attempts and actions merged.
// For attempts Action is "VERIFICATION_ATTEMPT" and Details holds the reason.
type Entry struct {
	ID        uuid.UUID
	Kind      Kind
	Action    string
	UserID    domain.UserID
	ActorID   domain.UserID
	GroupID   domain.GroupID
	Username  string
	Success   bool
	Details   string
	Timestamp time.Time
}

// AttemptAction is the Entry.Action value for verification attempts.
const AttemptAction = "VERIFICATION_ATTEMPT"

// EntryFromAttempt projects an attempt into the merged read model.
func EntryFromAttempt(a Attempt) Entry {
	return Entry{
		ID:        a.ID,
		Kind:      KindAttempt,
		Action:    AttemptAction,
		UserID:    a.UserID,
		GroupID:   a.GroupID,
		Username:  a.Username,
		Success:   a.Success,
		Details:   a.Reason,
		Timestamp: a.Timestamp,
	}
}

// EntryFromAction projects an action into the merged read model.
func EntryFromAction(a Action) Entry {
	return Entry{
		ID:        a.ID,
		Kind:      KindAction,
		Action:    string(a.Type),
		UserID:    a.UserID,
		ActorID:   a.ActorID,
		GroupID:   a.GroupID,
		Success:   a.Success,
		Details:   a.Details,
		Timestamp: a.Timestamp,
	}
}

const (
	DefaultListLimit = 10
	MaxListLimit     = 50
)

// Query filters List. An empty GroupID lists every group.
type Query struct {
	Limit   int
	GroupID domain.GroupID
}

// Normalize clamps Limit into [1, MaxListLimit], defaulting to DefaultListLimit.
func (q Query) Normalize() Query {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultListLimit
	case q.Limit > MaxListLimit:
		q.Limit = MaxListLimit
	}
	return q
}

// Stats is the aggregate returned to administrators.
type Stats struct {
	TotalVerified  int
	FailedInWindow int
	Since          time.Time
}

// Store is the durable history of verification. Implementations must make
// MarkVerified idempotent and keep the first VerifiedAt.
type Store interface {
	AppendAttempt(ctx context.Context, attempt Attempt) error
	AppendAction(ctx context.Context, action Action) error
	MarkVerified(ctx context.Context, userID domain.UserID, at time.Time) (Record, error)
	Record(ctx context.Context, userID domain.UserID) (Record, error)
	IsVerified(ctx context.Context, userID domain.UserID) (bool, error)
	List(ctx context.Context, q Query) ([]Entry, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}
