// Package handler exposes the audit ledger query surface over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/ledger"
	"custos/internal/platform/metrics"
	"custos/internal/platform/middleware"
	"custos/internal/policy"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
)

// Service is the ledger read surface. Satisfied by *ledger.Ledger.
type Service interface {
	List(ctx context.Context, filter ledger.Filter) ([]ledger.Record, error)
	Verify(ctx context.Context) (ledger.VerifyReport, error)
}

// Handler handles the audit endpoints.
type Handler struct {
	logger       *slog.Logger
	ledger       Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator

	// opsTokenHash guards verify-chain; empty disables the extra check.
	opsTokenHash string
}

func New(
	ldg Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	opsTokenHash string,
) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       ldg,
		metrics:      m,
		jwtValidator: jwtValidator,
		opsTokenHash: opsTokenHash,
	}
}

// Register registers the audit routes with the chi router. Chain
// verification walks the whole ledger, so it sits behind the ops token in
// addition to normal authentication.
func (h *Handler) Register(r chi.Router) {
	auditRouter := chi.NewRouter()
	auditRouter.Use(middleware.Recovery(h.logger))
	auditRouter.Use(middleware.RequestID)
	auditRouter.Use(middleware.Logger(h.logger))
	auditRouter.Use(middleware.Timeout(60 * time.Second))
	auditRouter.Use(metrics.LatencyMiddleware(h.metrics))
	auditRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	auditRouter.Get("/audit/events", h.handleListEvents)
	auditRouter.With(middleware.RequireOpsToken(h.opsTokenHash, h.logger)).
		Get("/audit/verify-chain", h.handleVerifyChain)

	r.Mount("/", auditRouter)
}

const maxEventLimit = 500

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.ledger.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	views := make([]ledger.View, 0, len(records))
	for _, rec := range records {
		views = append(views, rec.ToView())
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": views})
}

func parseFilter(r *http.Request) (ledger.Filter, error) {
	var filter ledger.Filter
	q := r.URL.Query()

	if raw := q.Get("event_type"); raw != "" {
		et := ledger.EventType(raw)
		switch et {
		case ledger.EventDecision, ledger.EventApprovalResolved, ledger.EventStatusChange:
			filter.EventType = &et
		default:
			return ledger.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "unknown event type")
		}
	}
	if raw := q.Get("decision"); raw != "" {
		outcome := policy.Outcome(raw)
		switch outcome {
		case policy.OutcomeAllow, policy.OutcomeDeny, policy.OutcomeStepUp:
			filter.Outcome = &outcome
		default:
			return ledger.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "unknown decision outcome")
		}
	}
	if raw := q.Get("asset_id"); raw != "" {
		tag, err := id.ParseAssetTag(raw)
		if err != nil {
			return ledger.Filter{}, err
		}
		filter.AssetTag = &tag
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxEventLimit {
			return ledger.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 500")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (h *Handler) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.ledger.Verify(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "chain verification failed to run",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "chain verification failed"))
		return
	}

	if !report.Valid {
		// Corruption is fatal to trust in the ledger. Loud, never repaired.
		h.logger.ErrorContext(ctx, "AUDIT CHAIN CORRUPTED",
			"request_id", middleware.GetRequestID(ctx),
			"first_invalid_sequence", *report.FirstInvalidSequence,
			"records", report.Records,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
