// Package handler exposes the asset inventory over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custos/internal/custody"
	"custos/internal/platform/metrics"
	"custos/internal/platform/middleware"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/httputil"
	"custos/pkg/platform/sentinel"
	"custos/pkg/requestcontext"
)

// Admin performs leased, ledger-recorded asset administration. Satisfied by
// *coordinator.Service.
type Admin interface {
	RegisterAsset(ctx context.Context, asset custody.Asset, actor id.UserID, role id.Role) (custody.Asset, error)
	SetAssetStatus(ctx context.Context, tag id.AssetTag, status custody.Status, actor id.UserID, role id.Role) (custody.Asset, error)
}

// Handler handles the asset endpoints.
type Handler struct {
	logger       *slog.Logger
	assets       custody.Store
	admin        Admin
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(
	assets custody.Store,
	admin Admin,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		logger:       logger,
		assets:       assets,
		admin:        admin,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the asset routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	assetRouter := chi.NewRouter()
	assetRouter.Use(middleware.Recovery(h.logger))
	assetRouter.Use(middleware.RequestID)
	assetRouter.Use(middleware.ClientMetadata)
	assetRouter.Use(middleware.RequestTime)
	assetRouter.Use(middleware.Logger(h.logger))
	assetRouter.Use(middleware.Timeout(30 * time.Second))
	assetRouter.Use(middleware.ContentTypeJSON)
	assetRouter.Use(metrics.LatencyMiddleware(h.metrics))
	assetRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	assetRouter.Get("/assets", h.handleList)
	assetRouter.Get("/assets/{tag}", h.handleGet)
	assetRouter.With(middleware.RequireElevated(h.logger)).
		Post("/assets", h.handleRegister)
	assetRouter.With(middleware.RequireElevated(h.logger)).
		Put("/assets/{tag}/status", h.handleSetStatus)

	r.Mount("/", assetRouter)
}

// AssetView is the HTTP representation of an asset.
type AssetView struct {
	Tag           string     `json:"tag"`
	Sensitivity   string     `json:"sensitivity"`
	Status        string     `json:"status"`
	CustodianID   string     `json:"custodian_id,omitempty"`
	SiteID        string     `json:"site_id"`
	LastSightedAt *time.Time `json:"last_sighted_at,omitempty"`
}

func toView(asset custody.Asset) AssetView {
	view := AssetView{
		Tag:           string(asset.Tag),
		Sensitivity:   string(asset.Sensitivity),
		Status:        string(asset.Status),
		SiteID:        asset.Site.String(),
		LastSightedAt: asset.LastSightedAt,
	}
	if asset.Custodian != nil {
		view.CustodianID = asset.Custodian.String()
	}
	return view
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assets, err := h.assets.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list assets",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list assets"))
		return
	}

	views := make([]AssetView, 0, len(assets))
	for _, asset := range assets {
		views = append(views, toView(asset))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"assets": views})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tag, err := id.ParseAssetTag(chi.URLParam(r, "tag"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	asset, err := h.assets.Get(ctx, tag)
	if err != nil {
		if sentinelIsNotFound(err) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "asset not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load asset",
			"request_id", middleware.GetRequestID(ctx),
			"asset_tag", tag,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load asset"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toView(asset))
}

// RegisterRequest is the body for POST /assets.
type RegisterRequest struct {
	Tag         string `json:"tag"`
	Sensitivity string `json:"sensitivity"`
	SiteID      string `json:"site_id"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}

	tag, err := id.ParseAssetTag(req.Tag)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sensitivity, err := id.ParseSensitivity(req.Sensitivity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	site, err := id.ParseSiteID(req.SiteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	asset, err := h.admin.RegisterAsset(ctx, custody.Asset{
		Tag:         tag,
		Sensitivity: sensitivity,
		Site:        site,
	}, requestcontext.ActorID(ctx), requestcontext.Role(ctx))
	if err != nil {
		h.writeAdminError(w, r, tag, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toView(asset))
}

// SetStatusRequest is the body for PUT /assets/{tag}/status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tag, err := id.ParseAssetTag(chi.URLParam(r, "tag"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.Decode[SetStatusRequest](w, r, h.logger)
	if !ok {
		return
	}

	asset, err := h.admin.SetAssetStatus(ctx, tag, custody.Status(req.Status),
		requestcontext.ActorID(ctx), requestcontext.Role(ctx))
	if err != nil {
		h.writeAdminError(w, r, tag, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toView(asset))
}

func (h *Handler) writeAdminError(w http.ResponseWriter, r *http.Request, tag id.AssetTag, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "asset administration failed",
			"request_id", middleware.GetRequestID(ctx),
			"asset_tag", tag,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "asset administration failed"))
		return
	}
	httputil.WriteError(w, err)
}

func sentinelIsNotFound(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound)
}
