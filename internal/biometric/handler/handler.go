// Package handler wires the biometric endpoints to the service layer. It
// owns request decoding and response shaping only; workflow rules live in
// the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"umid/internal/biometric/models"
	"umid/internal/biometric/service"
	"umid/internal/platform/middleware"
	dErrors "umid/pkg/domain-errors"
	"umid/pkg/httputil"
)

// Service defines the biometric operations exposed over HTTP.
type Service interface {
	EnrollFingerprint(ctx context.Context, userID string) (service.EnrollResult, error)
	AuthenticateFingerprint(ctx context.Context) (models.Match, error)
	EnrollFace(ctx context.Context, userID string, image []byte) (service.FaceEnrollResult, error)
	AuthenticateFace(ctx context.Context, image []byte) (models.Match, error)
	Templates(ctx context.Context, userID string) (service.TemplateStatus, error)
	DeleteTemplates(ctx context.Context, userID string) error
	Stats(ctx context.Context) (service.Stats, error)
	CleanupOrphans(ctx context.Context) (service.CleanupReport, error)
}

// Handler wires biometric endpoints to the biometric service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a biometric handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the operator-facing biometric endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/biometric/fingerprint/enroll", h.HandleEnrollFingerprint)
	r.Post("/biometric/fingerprint/authenticate", h.HandleAuthenticateFingerprint)
	r.Post("/biometric/face/enroll", h.HandleEnrollFace)
	r.Post("/biometric/face/authenticate", h.HandleAuthenticateFace)
	r.Get("/biometric/templates/{userID}", h.HandleGetTemplates)
	r.Delete("/biometric/templates/{userID}", h.HandleDeleteTemplates)
}

// RegisterAdmin mounts the admin endpoints.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/biometric/stats", h.HandleStats)
	r.Post("/admin/biometric/cleanup", h.HandleCleanup)
}

// HandleEnrollFingerprint handles POST /biometric/fingerprint/enroll.
func (h *Handler) HandleEnrollFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.DecodeJSON[EnrollFingerprintRequest](w, r)
	if !ok {
		return
	}

	result, err := h.service.EnrollFingerprint(ctx, req.UserID)
	if err != nil {
		h.logError(ctx, "fingerprint enrollment failed", err, "user_id", req.UserID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "fingerprint enrolled",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", req.UserID,
		"quality", result.Quality,
		"replaced", result.Replaced,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleAuthenticateFingerprint handles POST /biometric/fingerprint/authenticate.
// The capture itself identifies the user, so the request carries no body.
func (h *Handler) HandleAuthenticateFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	match, err := h.service.AuthenticateFingerprint(ctx)
	if err != nil {
		h.logError(ctx, "fingerprint authentication failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "fingerprint authenticated",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", match.UserID,
		"score", match.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, MatchResponse{UserID: match.UserID, Score: match.Score})
}

// HandleEnrollFace handles POST /biometric/face/enroll.
func (h *Handler) HandleEnrollFace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[EnrollFaceRequest](w, r)
	if !ok {
		return
	}
	image, err := req.DecodedImage()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.EnrollFace(ctx, req.UserID, image)
	if err != nil {
		h.logError(ctx, "face enrollment failed", err, "user_id", req.UserID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "face enrolled",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", req.UserID,
		"replaced", result.Replaced,
	)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleAuthenticateFace handles POST /biometric/face/authenticate.
func (h *Handler) HandleAuthenticateFace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[AuthenticateFaceRequest](w, r)
	if !ok {
		return
	}
	image, err := req.DecodedImage()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	match, err := h.service.AuthenticateFace(ctx, image)
	if err != nil {
		h.logError(ctx, "face authentication failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "face authenticated",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", match.UserID,
		"score", match.Score,
	)
	httputil.WriteJSON(w, http.StatusOK, MatchResponse{UserID: match.UserID, Score: match.Score})
}

// HandleGetTemplates handles GET /biometric/templates/{userID}.
func (h *Handler) HandleGetTemplates(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	status, err := h.service.Templates(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// HandleDeleteTemplates handles DELETE /biometric/templates/{userID}.
func (h *Handler) HandleDeleteTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if err := h.service.DeleteTemplates(ctx, userID); err != nil {
		h.logError(ctx, "template deletion failed", err, "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "templates deleted",
		"request_id", middleware.GetRequestID(ctx),
		"user_id", userID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /admin/biometric/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleCleanup handles POST /admin/biometric/cleanup.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.service.CleanupOrphans(ctx)
	if err != nil {
		h.logError(ctx, "orphan cleanup failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "orphan cleanup completed",
		"request_id", middleware.GetRequestID(ctx),
		"removed_fingerprints", len(report.RemovedFingerprints),
		"removed_faces", len(report.RemovedFaces),
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) logError(ctx context.Context, msg string, err error, args ...any) {
	args = append(args,
		"request_id", middleware.GetRequestID(ctx),
		"code", dErrors.CodeOf(err),
		"error", err,
	)
	h.logger.ErrorContext(ctx, msg, args...)
}
