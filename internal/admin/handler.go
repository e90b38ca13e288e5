// Package admin serves the administrator REST API over the verification and
// group services.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	groupmodels "warden/internal/group/models"
	"warden/internal/verification"
	"warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/httputil"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// VerificationService is the subset of the verification manager the API
// exposes.
type VerificationService interface {
	Stats(ctx context.Context) (verification.Stats, error)
	AuditLog(ctx context.Context, q audit.Query) ([]audit.Entry, error)
	ForceVerify(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (*verification.ForceResult, error)
	Record(ctx context.Context, userID domain.UserID) (audit.Record, error)
}

// GroupService reads and updates group configuration.
type GroupService interface {
	Get(ctx context.Context, groupID domain.GroupID) (*groupmodels.Config, error)
	Configure(ctx context.Context, groupID domain.GroupID, u groupmodels.Update) (*groupmodels.Config, error)
}

// Handler handles /admin endpoints. Authentication is applied by the router.
type Handler struct {
	verification VerificationService
	groups       GroupService
	logger       *slog.Logger
}

func New(verificationSvc VerificationService, groups GroupService, logger *slog.Logger) *Handler {
	return &Handler{verification: verificationSvc, groups: groups, logger: logger}
}

// Register registers the admin routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/stats", h.handleStats)
	r.Get("/audit", h.handleAuditLog)
	r.Get("/groups/{groupID}", h.handleGetGroup)
	r.Put("/groups/{groupID}", h.handleConfigureGroup)
	r.Get("/users/{userID}", h.handleGetUser)
	r.Post("/users/{userID}/verify", h.handleForceVerify)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.verification.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "failed to load stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatsResponse{
		TotalVerified: stats.TotalVerified,
		Pending:       stats.Pending,
		FailedLastDay: stats.FailedLastDay,
	})
}

func (h *Handler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	var q audit.Query
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer"))
			return
		}
		q.Limit = limit
	}
	if raw := r.URL.Query().Get("group_id"); raw != "" {
		groupID, err := domain.ParseGroupID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		q.GroupID = groupID
	}

	entries, err := h.verification.AuditLog(r.Context(), q)
	if err != nil {
		h.fail(w, r, "failed to list audit log", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditLogResponse(entries))
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cfg, err := h.groups.Get(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, "failed to load group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleConfigureGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var u groupmodels.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	cfg, err := h.groups.Configure(r.Context(), groupID, u)
	if err != nil {
		h.fail(w, r, "failed to configure group", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.verification.Record(r.Context(), userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		rec, err = audit.Record{UserID: userID}, nil
	}
	if err != nil {
		h.fail(w, r, "failed to load verification record", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(rec))
}

func (h *Handler) handleForceVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := domain.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ForceVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	groupID, err := domain.ParseGroupID(req.GroupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.verification.ForceVerify(ctx, userID, groupID)
	if err != nil {
		h.fail(w, r, "failed to force verify", err)
		return
	}
	h.logger.InfoContext(ctx, "force verify via admin api",
		"user_id", userID,
		"actor_id", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, ForceVerifyResponse{
		UserResponse:   toUserResponse(res.Record),
		ClearedPending: res.ClearedPending,
		Groups:         toGroupOutcomes(res.Report.Groups),
		Invite:         string(res.Report.Primary.Status),
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if httputil.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
