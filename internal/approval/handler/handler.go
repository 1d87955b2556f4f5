// Package handler exposes the approval workflow over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/approval"
	"custos/internal/coordinator"
	"custos/internal/platform/metrics"
	"custos/internal/platform/middleware"
	"custos/internal/verification"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// Resolver applies a manager's verdict and, on approval, replays the
// original action. Satisfied by *coordinator.Service.
type Resolver interface {
	ResolveApproval(ctx context.Context, approvalID id.ApprovalID, resolver id.UserID, resolverRole id.Role, approve bool, fact verification.Fact) (approval.Request, *coordinator.Result, error)
}

// Reader serves approval queries. Satisfied by *approval.Service.
type Reader interface {
	Get(ctx context.Context, approvalID id.ApprovalID) (approval.Request, error)
	List(ctx context.Context, status *approval.Status) ([]approval.Request, error)
}

// Handler handles the approval endpoints.
type Handler struct {
	logger       *slog.Logger
	resolver     Resolver
	approvals    Reader
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(
	resolver Resolver,
	approvals Reader,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		logger:       logger,
		resolver:     resolver,
		approvals:    approvals,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the approval routes with the chi router. Reads require
// authentication; verdicts additionally require an elevated role.
func (h *Handler) Register(r chi.Router) {
	approvalRouter := chi.NewRouter()
	approvalRouter.Use(middleware.Recovery(h.logger))
	approvalRouter.Use(middleware.RequestID)
	approvalRouter.Use(middleware.ClientMetadata)
	approvalRouter.Use(middleware.RequestTime)
	approvalRouter.Use(middleware.Logger(h.logger))
	approvalRouter.Use(middleware.Timeout(30 * time.Second))
	approvalRouter.Use(middleware.ContentTypeJSON)
	approvalRouter.Use(metrics.LatencyMiddleware(h.metrics))
	approvalRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	approvalRouter.Get("/approvals", h.handleList)
	approvalRouter.Get("/approvals/{id}", h.handleGet)
	approvalRouter.With(middleware.RequireElevated(h.logger)).
		Post("/approvals/{id}", h.handleResolve)

	r.Mount("/", approvalRouter)
}

// ApprovalView is the HTTP representation of an approval request.
type ApprovalView struct {
	ID            string     `json:"id"`
	AssetID       string     `json:"asset_id"`
	RequesterID   string     `json:"requester_id"`
	Action        string     `json:"action"`
	TargetUserID  string     `json:"target_user_id,omitempty"`
	SiteID        string     `json:"site_id"`
	Justification string     `json:"justification,omitempty"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolverID    string     `json:"resolver_id,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func toView(req approval.Request) ApprovalView {
	view := ApprovalView{
		ID:            req.ID.String(),
		AssetID:       string(req.AssetTag),
		RequesterID:   req.Requester.String(),
		Action:        string(req.Action),
		SiteID:        req.Site.String(),
		Justification: req.Justification,
		Reason:        string(req.Reason),
		Status:        string(req.Status),
		CreatedAt:     req.CreatedAt,
		ResolvedAt:    req.ResolvedAt,
	}
	if req.TargetUser != nil {
		view.TargetUserID = req.TargetUser.String()
	}
	if req.Resolver != nil {
		view.ResolverID = req.Resolver.String()
	}
	return view
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var status *approval.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := approval.Status(raw)
		switch s {
		case approval.StatusPending, approval.StatusApproved, approval.StatusRejected:
			status = &s
		default:
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown approval status"))
			return
		}
	}

	requests, err := h.approvals.List(ctx, status)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list approvals",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list approvals"))
		return
	}

	views := make([]ApprovalView, 0, len(requests))
	for _, req := range requests {
		views = append(views, toView(req))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"approvals": views})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	approvalID, err := id.ParseApprovalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.approvals.Get(ctx, approvalID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to load approval",
			"request_id", middleware.GetRequestID(ctx),
			"approval_id", approvalID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load approval"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toView(req))
}

// ResolveRequest is the verdict body for POST /approvals/{id}.
type ResolveRequest struct {
	Action           string             `json:"action"`
	VerificationFact *verification.Fact `json:"verification_fact,omitempty"`
}

// ResolveResponse returns the resolved approval plus, on an approved
// continuation, the replayed decision.
type ResolveResponse struct {
	Approval ApprovalView `json:"approval"`
	Decision string       `json:"decision,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Message  string       `json:"message,omitempty"`
	Sequence uint64       `json:"sequence,omitempty"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	approvalID, err := id.ParseApprovalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	body, ok := httputil.Decode[ResolveRequest](w, r, h.logger)
	if !ok {
		return
	}

	var approve bool
	switch body.Action {
	case string(approval.StatusApproved):
		approve = true
	case string(approval.StatusRejected):
		approve = false
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "action must be APPROVED or REJECTED"))
		return
	}

	var fact verification.Fact
	if body.VerificationFact != nil {
		fact = *body.VerificationFact
	}

	req, result, err := h.resolver.ResolveApproval(ctx, approvalID,
		requestcontext.ActorID(ctx), requestcontext.Role(ctx), approve, fact)
	if err != nil {
		code := dErrors.CodeOf(err)
		if code == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to resolve approval",
				"request_id", requestID,
				"approval_id", approvalID,
				"error", err,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to resolve approval"))
			return
		}
		h.logger.WarnContext(ctx, "approval verdict rejected",
			"request_id", requestID,
			"approval_id", approvalID,
			"code", code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ResolveResponse{Approval: toView(req)}
	if result != nil {
		resp.Decision = string(result.Decision.Outcome)
		resp.Reason = string(result.Decision.Reason)
		resp.Message = result.Decision.Reason.Message()
		resp.Sequence = result.Sequence
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
