// Package handler exposes custody operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/coordinator"
	"custos/internal/platform/metrics"
	"custos/internal/platform/middleware"
	"custos/internal/verification"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	"custos/pkg/requestcontext"
)

// Executor runs custody operations. Satisfied by *coordinator.Service.
type Executor interface {
	Execute(ctx context.Context, cmd coordinator.Command) (coordinator.Result, error)
}

// FactSource builds a verification fact when the caller did not inline one.
type FactSource interface {
	Gather(ctx context.Context, claimedPhone string, site id.SiteID) (verification.Fact, error)
}

// Handler handles the custody operation endpoints.
type Handler struct {
	logger       *slog.Logger
	coordinator  Executor
	facts        FactSource
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(
	coord Executor,
	facts FactSource,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		logger:       logger,
		coordinator:  coord,
		facts:        facts,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the custody routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	custodyRouter := chi.NewRouter()
	custodyRouter.Use(middleware.Recovery(h.logger))
	custodyRouter.Use(middleware.RequestID)
	custodyRouter.Use(middleware.ClientMetadata)
	custodyRouter.Use(middleware.RequestTime)
	custodyRouter.Use(middleware.Logger(h.logger))
	custodyRouter.Use(middleware.Timeout(30 * time.Second))
	custodyRouter.Use(middleware.ContentTypeJSON)
	custodyRouter.Use(metrics.LatencyMiddleware(h.metrics))
	custodyRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	custodyRouter.Post("/custody/checkout", h.handleAction(id.ActionCheckout))
	custodyRouter.Post("/custody/return", h.handleAction(id.ActionReturn))
	custodyRouter.Post("/custody/transfer", h.handleAction(id.ActionTransfer))
	custodyRouter.Post("/custody/inventory-close", h.handleAction(id.ActionInventoryClose))

	r.Mount("/", custodyRouter)
}

// CustodyRequest is the shared request body for all four custody operations.
// When VerificationFact is omitted the fact is gathered live from the
// providers using ClaimedPhone.
type CustodyRequest struct {
	AssetID          string             `json:"asset_id"`
	SiteID           string             `json:"site_id"`
	TargetUserID     string             `json:"target_user_id,omitempty"`
	Justification    string             `json:"justification,omitempty"`
	ClaimedPhone     string             `json:"claimed_phone,omitempty"`
	VerificationFact *verification.Fact `json:"verification_fact,omitempty"`
}

// CustodyResponse mirrors the decision back to the caller. Success is true
// only for ALLOW.
type CustodyResponse struct {
	Success      bool                 `json:"success"`
	Decision     string               `json:"decision"`
	Reason       string               `json:"reason"`
	Message      string               `json:"message"`
	ApprovalID   string               `json:"approval_id,omitempty"`
	AssetState   string               `json:"asset_state,omitempty"`
	Sequence     uint64               `json:"sequence"`
	Verification verification.Summary `json:"verification"`
}

func (h *Handler) handleAction(action id.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := middleware.GetRequestID(ctx)

		actor := requestcontext.ActorID(ctx)
		if actor.IsNil() {
			h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
				"request_id", requestID,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
			return
		}

		req, ok := httputil.Decode[CustodyRequest](w, r, h.logger)
		if !ok {
			return
		}

		cmd, err := h.buildCommand(ctx, action, actor, req)
		if err != nil {
			h.logger.WarnContext(ctx, "invalid custody request",
				"request_id", requestID,
				"action", action,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}

		result, err := h.coordinator.Execute(ctx, cmd)
		if err != nil {
			h.writeExecuteError(w, r, action, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, toResponse(result))
	}
}

func (h *Handler) buildCommand(ctx context.Context, action id.Action, actor id.UserID, req CustodyRequest) (coordinator.Command, error) {
	tag, err := id.ParseAssetTag(req.AssetID)
	if err != nil {
		return coordinator.Command{}, err
	}
	site, err := id.ParseSiteID(req.SiteID)
	if err != nil {
		return coordinator.Command{}, err
	}

	cmd := coordinator.Command{
		Action:        action,
		AssetTag:      tag,
		Actor:         actor,
		Role:          requestcontext.Role(ctx),
		Site:          site,
		Justification: req.Justification,
	}

	if action == id.ActionTransfer {
		target, err := id.ParseUserID(req.TargetUserID)
		if err != nil {
			return coordinator.Command{}, dErrors.New(dErrors.CodeInvalidInput, "target user id must be a valid UUID")
		}
		cmd.Target = &target
	}

	if req.VerificationFact != nil {
		cmd.Fact = *req.VerificationFact
	} else {
		// No inline fact: gather live. Provider outages degrade to
		// unchecked sections, never to an error.
		fact, err := h.facts.Gather(ctx, req.ClaimedPhone, site)
		if err != nil {
			return coordinator.Command{}, err
		}
		cmd.Fact = fact
	}
	return cmd, nil
}

func (h *Handler) writeExecuteError(w http.ResponseWriter, r *http.Request, action id.Action, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, "custody operation failed",
			"request_id", middleware.GetRequestID(ctx),
			"action", action,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "custody operation failed"))
	default:
		h.logger.WarnContext(ctx, "custody operation rejected",
			"request_id", middleware.GetRequestID(ctx),
			"action", action,
			"code", code,
			"error", err,
		)
		httputil.WriteError(w, err)
	}
}

func toResponse(result coordinator.Result) CustodyResponse {
	resp := CustodyResponse{
		Success:      result.Allowed(),
		Decision:     string(result.Decision.Outcome),
		Reason:       string(result.Decision.Reason),
		Message:      result.Decision.Reason.Message(),
		Sequence:     result.Sequence,
		Verification: result.Decision.Verification,
	}
	if result.ApprovalID != nil {
		resp.ApprovalID = result.ApprovalID.String()
	}
	if result.Asset != nil {
		resp.AssetState = string(result.Asset.Status)
	}
	return resp
}
