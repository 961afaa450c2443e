// Package handler exposes the fraud detection HTTP API. All endpoints require
// a valid bearer token; mutating endpoints additionally require the admin
// role.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tenderwatch/internal/fraud/models"
	"tenderwatch/internal/fraud/service"
	dErrors "tenderwatch/pkg/domain-errors"
	"tenderwatch/pkg/platform/httputil"
	mwauth "tenderwatch/pkg/platform/middleware/auth"
	"tenderwatch/pkg/requestcontext"
)

// Service defines the fraud operations the handler needs.
type Service interface {
	RunDetection(ctx context.Context) (service.RunSummary, error)
	ListFlags(ctx context.Context) ([]models.FraudFlag, error)
	ListClusters(ctx context.Context) ([]models.FraudCluster, error)
	ReviewFlag(ctx context.Context, flagID uuid.UUID, status models.Status, reviewedBy string) (*models.FraudFlag, error)
}

// Handler handles fraud detection endpoints.
type Handler struct {
	logger       *slog.Logger
	fraud        Service
	jwtValidator mwauth.TokenValidator
}

// New creates a new fraud Handler.
func New(fraud Service, logger *slog.Logger, jwtValidator mwauth.TokenValidator) *Handler {
	return &Handler{
		logger:       logger,
		fraud:        fraud,
		jwtValidator: jwtValidator,
	}
}

// Register registers the fraud routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	fraudRouter := chi.NewRouter()
	fraudRouter.Use(mwauth.RequireAuth(h.jwtValidator, h.logger))
	fraudRouter.Get("/flags", h.handleListFlags)
	fraudRouter.Get("/clusters", h.handleListClusters)
	fraudRouter.Post("/run", h.handleRun)
	fraudRouter.Patch("/flags/{id}", h.handleReviewFlag)

	r.Mount("/fraud", fraudRouter)
}

func (h *Handler) handleListFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flags, err := h.fraud.ListFlags(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list fraud flags",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFlagResponses(flags))
}

func (h *Handler) handleListClusters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clusters, err := h.fraud.ListClusters(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list fraud clusters",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClusterResponses(clusters))
}

// handleRun triggers a full detection pass. Admin only; the run is synchronous
// and concurrent runs are allowed to overlap.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx, requestID) {
		return
	}

	summary, err := h.fraud.RunDetection(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "detection run failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RunResponse{
		Status:          "ok",
		ClustersCreated: summary.ClustersCreated,
	})
}

func (h *Handler) handleReviewFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.requireAdmin(w, ctx, requestID) {
		return
	}

	flagID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "fraud flag not found"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateFlagRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.fraud.ReviewFlag(ctx, flagID, models.Status(req.Status), req.ReviewedBy)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to review fraud flag",
				"request_id", requestID,
				"flag_id", flagID.String(),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFlagResponse(*updated))
}

func (h *Handler) requireAdmin(w http.ResponseWriter, ctx context.Context, requestID string) bool {
	if requestcontext.Role(ctx) == "admin" {
		return true
	}
	h.logger.WarnContext(ctx, "forbidden - admin role required",
		"request_id", requestID,
		"role", requestcontext.Role(ctx),
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
	return false
}
