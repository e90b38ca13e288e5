// Package verification owns the per-user verification state machine:
// NONE -> PENDING -> {VERIFIED, CANCELLED, EXPIRED}. Only PENDING is held in
// memory; the durable verified flag and every attempt live in the audit
// store.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	groupmodels "warden/internal/group/models"
	"warden/internal/propagation"
	ratelimitmodels "warden/internal/ratelimit/models"
	"warden/internal/screen"
	"warden/internal/verification/metrics"
	"warden/pkg/domain"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/keylock"
	"warden/pkg/platform/pseudoid"
	"warden/pkg/platform/retry"
	"warden/pkg/requestcontext"
)

//go:generate mockgen -source=manager.go -destination=mocks/mocks.go -package=mocks

type AuditStore interface {
	AppendAttempt(ctx context.Context, attempt audit.Attempt) error
	AppendAction(ctx context.Context, action audit.Action) error
	MarkVerified(ctx context.Context, userID domain.UserID, at time.Time) (audit.Record, error)
	Record(ctx context.Context, userID domain.UserID) (audit.Record, error)
	IsVerified(ctx context.Context, userID domain.UserID) (bool, error)
	List(ctx context.Context, q audit.Query) ([]audit.Entry, error)
	Stats(ctx context.Context, since time.Time) (audit.Stats, error)
}

type RateLimiter interface {
	Check(ctx context.Context, userID domain.UserID, policy ratelimitmodels.Policy) (ratelimitmodels.Result, error)
	Record(ctx context.Context, userID domain.UserID, policy ratelimitmodels.Policy) (ratelimitmodels.Result, error)
	Reset(ctx context.Context, userID domain.UserID) error
}

type PolicySource interface {
	Policy(ctx context.Context, groupID domain.GroupID) (groupmodels.Policy, error)
}

type Propagator interface {
	Apply(ctx context.Context, userID domain.UserID, origin domain.GroupID) propagation.Report
	ApplyToGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID) propagation.GroupResult
}

// Notifier delivers prompts and outcomes. Prompt tries a direct message first
// and falls back to the origin channel; it returns an error only when both
// fail.
type Notifier interface {
	Prompt(ctx context.Context, p Prompt) error
	Outcome(ctx context.Context, n Notice) error
}

// ErrorReporter forwards unrecoverable failures to an error tracker.
type ErrorReporter func(ctx context.Context, err error, tags map[string]string)

var tracer = otel.Tracer("warden/verification")

const defaultNotifyTimeout = 10 * time.Second

// Manager orchestrates verification. Every mutation of one user's session
// runs under that user's stripe of locks; prompt delivery and propagation
// run after the lock is released.
type Manager struct {
	audit      AuditStore
	limiter    RateLimiter
	policies   PolicySource
	propagator Propagator
	notifier   Notifier

	sessions    *sessionTable
	locks       *keylock.Striped
	pseudo      *pseudoid.Hasher
	newToken    TokenSource
	retryPolicy retry.Policy
	reportError ErrorReporter
	logger      *slog.Logger
	metrics     *metrics.Metrics

	notifyTimeout time.Duration
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithLocks(locks *keylock.Striped) Option {
	return func(m *Manager) {
		m.locks = locks
	}
}

func WithPseudoID(h *pseudoid.Hasher) Option {
	return func(m *Manager) {
		m.pseudo = h
	}
}

func WithTokenSource(src TokenSource) Option {
	return func(m *Manager) {
		m.newToken = src
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(m *Manager) {
		m.retryPolicy = p
	}
}

// WithNotifyTimeout bounds outcome delivery. The notice runs detached from
// the caller's deadline so slow propagation cannot starve it.
func WithNotifyTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.notifyTimeout = d
	}
}

func WithErrorReporter(r ErrorReporter) Option {
	return func(m *Manager) {
		m.reportError = r
	}
}

func New(auditStore AuditStore, limiter RateLimiter, policies PolicySource, propagator Propagator, notifier Notifier, opts ...Option) (*Manager, error) {
	switch {
	case auditStore == nil:
		return nil, errors.New("audit store is required")
	case limiter == nil:
		return nil, errors.New("rate limiter is required")
	case policies == nil:
		return nil, errors.New("policy source is required")
	case propagator == nil:
		return nil, errors.New("propagator is required")
	case notifier == nil:
		return nil, errors.New("notifier is required")
	}
	m := &Manager{
		audit:       auditStore,
		limiter:     limiter,
		policies:    policies,
		propagator:  propagator,
		notifier:    notifier,
		sessions:    newSessionTable(),
		newToken:    NewToken,
		retryPolicy: retry.DefaultPolicy(),
		logger:      slog.Default(),

		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.locks == nil {
		m.locks = keylock.New(keylock.DefaultStripes)
	}
	if m.pseudo == nil {
		h, err := pseudoid.New("")
		if err != nil {
			return nil, err
		}
		m.pseudo = h
	}
	return m, nil
}

// =============================================================================
// Start
// =============================================================================

// Start runs the gate checks in order (verified, rate limit, screen, pending)
// and opens a session. A refused start returns *RejectedError and is audited.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	ctx, span := tracer.Start(ctx, "verification.Start", trace.WithAttributes(
		attribute.String("group.id", req.GroupID.String()),
	))
	defer span.End()

	result, prompt, err := m.start(ctx, req)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			span.SetAttributes(attribute.String("verification.rejected", rejected.Reason))
			m.metrics.IncrementStart("rejected")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "start failed")
			m.metrics.IncrementStart("error")
		}
		return nil, err
	}
	m.metrics.IncrementStart("started")

	if err := m.notifier.Prompt(ctx, prompt); err != nil {
		m.metrics.IncrementPromptFailure()
		m.logger.WarnContext(ctx, "verification prompt undeliverable",
			"pseudo_id", m.pseudo.Of(req.UserID),
			"group_id", req.GroupID,
			"error", err,
		)
		m.appendAction(ctx, audit.Action{
			Type:    audit.ActionPromptDeliveryFailed,
			UserID:  req.UserID,
			GroupID: req.GroupID,
			Success: false,
			Details: err.Error(),
		})
	}
	return result, nil
}

func (m *Manager) start(ctx context.Context, req StartRequest) (*StartResult, Prompt, error) {
	now := requestcontext.Now(ctx)
	policy, err := m.policies.Policy(ctx, req.GroupID)
	if err != nil {
		return nil, Prompt{}, fmt.Errorf("resolve group policy: %w", err)
	}
	limitPolicy := ratelimitmodels.Policy{MaxAttempts: policy.MaxAttemptsPerWindow, Window: policy.Window}

	unlock := m.locks.Lock(req.UserID.String())
	defer unlock()

	verified, err := m.audit.IsVerified(ctx, req.UserID)
	if err != nil {
		return nil, Prompt{}, fmt.Errorf("check verified: %w", err)
	}
	if verified {
		return nil, Prompt{}, m.reject(ctx, req, &RejectedError{Reason: ReasonAlreadyVerified})
	}

	limit, err := m.limiter.Check(ctx, req.UserID, limitPolicy)
	if err != nil {
		return nil, Prompt{}, err
	}
	if !limit.Allowed {
		return nil, Prompt{}, m.reject(ctx, req, &RejectedError{Reason: ReasonRateLimited, RetryAt: limit.ResetAt})
	}

	snap := req.Snapshot
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = now
	}
	if issues := screen.Evaluate(snap, screen.Policy{MinAccountAgeDays: policy.MinAccountAgeDays()}); len(issues) > 0 {
		return nil, Prompt{}, m.reject(ctx, req, securityRejection(issues))
	}

	if _, pending := m.sessions.get(req.UserID); pending {
		return nil, Prompt{}, m.reject(ctx, req, &RejectedError{Reason: ReasonAlreadyPending})
	}

	token, err := m.newToken(req.UserID, now)
	if err != nil {
		return nil, Prompt{}, err
	}
	recorded, err := m.limiter.Record(ctx, req.UserID, limitPolicy)
	if err != nil {
		return nil, Prompt{}, err
	}

	session := &Session{
		UserID:          req.UserID,
		Token:           token,
		CreatedAt:       now,
		Timeout:         policy.SessionTimeout,
		OriginGroupID:   req.GroupID,
		OriginChannelID: req.ChannelID,
		AttemptCount:    recorded.Count,
		Username:        snap.Username,
	}
	m.sessions.put(session)
	m.metrics.SetPending(m.sessions.len())

	m.logger.InfoContext(ctx, "verification started",
		"pseudo_id", m.pseudo.Of(req.UserID),
		"group_id", req.GroupID,
		"attempt", recorded.Count,
		"expires_at", session.ExpiresAt(),
	)

	requirements := Requirements{
		MinAccountAgeDays: policy.MinAccountAgeDays(),
		Timeout:           policy.SessionTimeout,
	}
	result := &StartResult{
		Token:        token,
		ExpiresAt:    session.ExpiresAt(),
		AttemptCount: recorded.Count,
		Requirements: requirements,
	}
	prompt := Prompt{
		UserID:       req.UserID,
		GroupID:      req.GroupID,
		ChannelID:    req.ChannelID,
		Username:     snap.Username,
		Token:        token,
		ExpiresAt:    session.ExpiresAt(),
		Timeout:      policy.SessionTimeout,
		Requirements: requirements,
	}
	return result, prompt, nil
}

// reject audits a refused start and returns the rejection. Must hold the
// user's lock.
func (m *Manager) reject(ctx context.Context, req StartRequest, rejected *RejectedError) error {
	m.logger.InfoContext(ctx, "verification start rejected",
		"pseudo_id", m.pseudo.Of(req.UserID),
		"group_id", req.GroupID,
		"reason", rejected.Reason,
	)
	m.appendAttempt(ctx, req.UserID, req.GroupID, req.Snapshot.Username, false, rejected.Reason)
	return rejected
}

// =============================================================================
// Confirm / Cancel / Expire
// =============================================================================

// Confirm resolves the user's pending session with their choice. Without a
// pending session it is a no-op returning OutcomeIgnored.
func (m *Manager) Confirm(ctx context.Context, userID domain.UserID, choice Choice) (*ConfirmResult, error) {
	return m.confirm(ctx, userID, "", choice)
}

// ConfirmToken is Confirm for a specific prompt. A token that does not match
// the live session is treated as a stale event.
func (m *Manager) ConfirmToken(ctx context.Context, userID domain.UserID, token string, choice Choice) (*ConfirmResult, error) {
	if token == "" {
		return &ConfirmResult{Outcome: OutcomeIgnored}, nil
	}
	return m.confirm(ctx, userID, token, choice)
}

func (m *Manager) confirm(ctx context.Context, userID domain.UserID, token string, choice Choice) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "verification.Confirm", trace.WithAttributes(
		attribute.String("verification.choice", string(choice)),
	))
	defer span.End()

	now := requestcontext.Now(ctx)
	unlock := m.locks.Lock(userID.String())

	session, ok := m.sessions.get(userID)
	if !ok || (token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(session.Token)) != 1) {
		unlock()
		m.logger.DebugContext(ctx, "stale confirmation ignored", "pseudo_id", m.pseudo.Of(userID))
		span.SetAttributes(attribute.String("verification.outcome", string(OutcomeIgnored)))
		return &ConfirmResult{Outcome: OutcomeIgnored}, nil
	}

	// Expiry wins over a late decline so the attempt records the timeout.
	switch {
	case session.Expired(now):
		res := m.closeLocked(ctx, session, OutcomeExpired, ReasonTimeout, now)
		unlock()
		m.notifyOutcome(ctx, session, res)
		return res, nil
	case choice == ChoiceDecline:
		res := m.closeLocked(ctx, session, OutcomeCancelled, ReasonCancelled, now)
		unlock()
		m.notifyOutcome(ctx, session, res)
		return res, nil
	}

	m.sessions.remove(userID)
	record, err := m.markVerified(ctx, userID, now)
	if err != nil {
		m.sessions.put(session)
		unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return nil, err
	}
	m.appendAttempt(ctx, userID, session.OriginGroupID, session.Username, true, ReasonSuccess)
	m.metrics.SetPending(m.sessions.len())
	m.metrics.ObserveResolution(string(OutcomeVerified), now.Sub(session.CreatedAt))
	unlock()

	m.logger.InfoContext(ctx, "user verified",
		"pseudo_id", m.pseudo.Of(userID),
		"group_id", session.OriginGroupID,
	)

	report := m.propagator.Apply(ctx, userID, session.OriginGroupID)
	res := &ConfirmResult{Outcome: OutcomeVerified, VerifiedAt: record.VerifiedAt, Report: &report}
	span.SetAttributes(attribute.String("verification.outcome", string(OutcomeVerified)))
	m.notifyOutcome(ctx, session, res)
	return res, nil
}

// Cancel abandons the user's pending session. No-op without one.
func (m *Manager) Cancel(ctx context.Context, userID domain.UserID) (*ConfirmResult, error) {
	now := requestcontext.Now(ctx)
	unlock := m.locks.Lock(userID.String())
	session, ok := m.sessions.get(userID)
	if !ok {
		unlock()
		return &ConfirmResult{Outcome: OutcomeIgnored}, nil
	}
	res := m.closeLocked(ctx, session, OutcomeCancelled, ReasonCancelled, now)
	unlock()
	m.notifyOutcome(ctx, session, res)
	return res, nil
}

// Expire closes the user's session if it has reached its deadline. Presence
// and age are rechecked under the lock, so a concurrent Confirm and Expire
// produce exactly one outcome.
func (m *Manager) Expire(ctx context.Context, userID domain.UserID) (*ConfirmResult, error) {
	now := requestcontext.Now(ctx)
	unlock := m.locks.Lock(userID.String())
	session, ok := m.sessions.get(userID)
	if !ok || !session.Expired(now) {
		unlock()
		return &ConfirmResult{Outcome: OutcomeIgnored}, nil
	}
	res := m.closeLocked(ctx, session, OutcomeExpired, ReasonTimeout, now)
	unlock()
	m.notifyOutcome(ctx, session, res)
	return res, nil
}

// Sweep expires every due session and returns how many expired.
func (m *Manager) Sweep(ctx context.Context) int {
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	expired := 0
	for _, userID := range m.sessions.due(now) {
		res, err := m.Expire(ctx, userID)
		if err != nil {
			m.logger.WarnContext(ctx, "session expiry failed", "pseudo_id", m.pseudo.Of(userID), "error", err)
			continue
		}
		if res.Outcome == OutcomeExpired {
			expired++
		}
	}
	return expired
}

// closeLocked removes the session and writes the terminal attempt. Must hold
// the user's lock.
func (m *Manager) closeLocked(ctx context.Context, s *Session, outcome Outcome, reason string, now time.Time) *ConfirmResult {
	m.sessions.remove(s.UserID)
	m.appendAttempt(ctx, s.UserID, s.OriginGroupID, s.Username, false, reason)
	m.metrics.SetPending(m.sessions.len())
	m.metrics.ObserveResolution(string(outcome), now.Sub(s.CreatedAt))
	m.logger.InfoContext(ctx, "verification closed",
		"pseudo_id", m.pseudo.Of(s.UserID),
		"group_id", s.OriginGroupID,
		"outcome", outcome,
	)
	return &ConfirmResult{Outcome: outcome}
}

func (m *Manager) notifyOutcome(ctx context.Context, s *Session, res *ConfirmResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.notifyTimeout)
	defer cancel()
	err := m.notifier.Outcome(ctx, Notice{
		UserID:    s.UserID,
		GroupID:   s.OriginGroupID,
		ChannelID: s.OriginChannelID,
		Outcome:   res.Outcome,
		Report:    res.Report,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "outcome notification failed",
			"pseudo_id", m.pseudo.Of(s.UserID),
			"outcome", res.Outcome,
			"error", err,
		)
	}
}

// =============================================================================
// Administrative operations
// =============================================================================

// ForceVerify marks a user verified without a session and propagates. The
// acting administrator is read from the context. Any pending session is
// discarded.
func (m *Manager) ForceVerify(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (*ForceResult, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	unlock := m.locks.Lock(userID.String())
	_, cleared := m.sessions.remove(userID)
	record, err := m.markVerified(ctx, userID, now)
	if err != nil {
		unlock()
		return nil, err
	}
	m.appendAttempt(ctx, userID, groupID, "", true, forceReason(actor))
	details := "Manually verified by administrator"
	if client := requestcontext.Client(ctx); client != "" {
		details += " via " + client
	}
	m.appendAction(ctx, audit.Action{
		Type:    audit.ActionForceVerify,
		ActorID: actor,
		UserID:  userID,
		GroupID: groupID,
		Success: true,
		Details: details,
	})
	m.metrics.SetPending(m.sessions.len())
	unlock()

	if err := m.limiter.Reset(ctx, userID); err != nil {
		m.logger.WarnContext(ctx, "failed to reset rate limit window",
			"user_id", userID,
			"error", err,
		)
	}
	m.logger.InfoContext(ctx, "user force verified",
		"user_id", userID,
		"actor_id", actor,
		"group_id", groupID,
	)
	report := m.propagator.Apply(ctx, userID, groupID)
	return &ForceResult{Record: record, Report: report, ClearedPending: cleared}, nil
}

// MemberJoined grants the group's marker to an already verified user who
// joins an auto-grant group. It returns false when the user is not verified.
func (m *Manager) MemberJoined(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (propagation.GroupResult, bool, error) {
	verified, err := m.audit.IsVerified(ctx, userID)
	if err != nil {
		return propagation.GroupResult{}, false, fmt.Errorf("check verified: %w", err)
	}
	if !verified {
		return propagation.GroupResult{}, false, nil
	}
	res := m.propagator.ApplyToGroup(ctx, userID, groupID)
	if res.Status == propagation.StatusGranted {
		m.appendAction(ctx, audit.Action{
			Type:    audit.ActionAutoGrant,
			UserID:  userID,
			GroupID: groupID,
			Success: true,
			Details: "Auto-granted access marker to verified member",
		})
	}
	return res, true, nil
}

// IsVerified reports the durable verified flag.
func (m *Manager) IsVerified(ctx context.Context, userID domain.UserID) (bool, error) {
	return m.audit.IsVerified(ctx, userID)
}

// Record returns the durable verification record.
func (m *Manager) Record(ctx context.Context, userID domain.UserID) (audit.Record, error) {
	return m.audit.Record(ctx, userID)
}

// Pending is the number of live sessions.
func (m *Manager) Pending(context.Context) int {
	return m.sessions.len()
}

// Session returns a copy of the user's pending session.
func (m *Manager) Session(userID domain.UserID) (Session, bool) {
	s, ok := m.sessions.get(userID)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Stats summarizes verification for administrators. Failures count the last
// 24 hours.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	since := requestcontext.Now(ctx).Add(-24 * time.Hour)
	st, err := m.audit.Stats(ctx, since)
	if err != nil {
		return Stats{}, fmt.Errorf("load audit stats: %w", err)
	}
	return Stats{
		TotalVerified: st.TotalVerified,
		Pending:       m.sessions.len(),
		FailedLastDay: st.FailedInWindow,
	}, nil
}

// AuditLog returns recent audit entries, newest first. The limit is clamped
// to audit.MaxListLimit.
func (m *Manager) AuditLog(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	entries, err := m.audit.List(ctx, q.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// =============================================================================
// Store helpers
// =============================================================================

// markVerified writes the verified flag under the retry policy. An exhausted
// retry is logged, counted and reported.
func (m *Manager) markVerified(ctx context.Context, userID domain.UserID, now time.Time) (audit.Record, error) {
	var record audit.Record
	err := retry.Do(ctx, m.retryPolicy, func(ctx context.Context) error {
		var err error
		record, err = m.audit.MarkVerified(ctx, userID, now)
		return err
	}, func(err error, wait time.Duration) {
		m.logger.WarnContext(ctx, "verification record write failed, retrying",
			"pseudo_id", m.pseudo.Of(userID),
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		m.metrics.IncrementStoreFailure()
		m.logger.ErrorContext(ctx, "verification record write failed",
			"pseudo_id", m.pseudo.Of(userID),
			"error", err,
		)
		if m.reportError != nil {
			m.reportError(ctx, err, map[string]string{
				"component": "verification",
				"pseudo_id": m.pseudo.Of(userID),
			})
		}
		return audit.Record{}, fmt.Errorf("mark verified: %w", err)
	}
	return record, nil
}

func (m *Manager) appendAttempt(ctx context.Context, userID domain.UserID, groupID domain.GroupID, username string, success bool, reason string) {
	attempt := audit.Attempt{
		ID:        uuid.New(),
		UserID:    userID,
		GroupID:   groupID,
		Username:  username,
		Success:   success,
		Reason:    reason,
		PseudoID:  m.pseudo.Of(userID),
		Timestamp: requestcontext.Now(ctx),
	}
	if err := m.audit.AppendAttempt(ctx, attempt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append verification attempt",
			"pseudo_id", attempt.PseudoID,
			"reason", reason,
			"error", err,
		)
	}
}

func (m *Manager) appendAction(ctx context.Context, action audit.Action) {
	action.ID = uuid.New()
	action.Timestamp = requestcontext.Now(ctx)
	if err := m.audit.AppendAction(ctx, action); err != nil {
		m.logger.ErrorContext(ctx, "failed to append audit action",
			"action", action.Type,
			"error", err,
		)
	}
}
