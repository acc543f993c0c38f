package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"umid/internal/audit"
	"umid/internal/biometric/capture"
	"umid/internal/biometric/models"
	dErrors "umid/pkg/domain-errors"
	"umid/pkg/sentinel"
)

// FaceEnrollResult reports the outcome of a face enrollment.
type FaceEnrollResult struct {
	UserID   string `json:"user_id"`
	Replaced bool   `json:"replaced"`
	Warning  string `json:"warning,omitempty"`
}

// EnrollFace extracts a face encoding from the submitted image and stores it
// as the user's single face template. Multiple detected faces proceed with
// the first one and surface a warning rather than failing the enrollment.
func (s *Service) EnrollFace(ctx context.Context, userID string, image []byte) (FaceEnrollResult, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.EnrollFace",
		trace.WithAttributes(attribute.String("modality", string(models.ModalityFace))))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveEnroll(string(models.ModalityFace), time.Now())
	}

	if err := s.requireKnownUser(ctx, userID); err != nil {
		s.recordEnrollment(string(models.ModalityFace), "rejected")
		return FaceEnrollResult{}, err
	}

	encoded, err := capture.Face(s.detector, image)
	if err != nil {
		s.recordEnrollment(string(models.ModalityFace), "capture_failed")
		s.recordCaptureFailure(string(models.ModalityFace), string(dErrors.CodeOf(err)))
		return FaceEnrollResult{}, err
	}

	result := FaceEnrollResult{UserID: userID}
	if encoded.MultipleFaces {
		result.Warning = "multiple faces detected; the most prominent one was enrolled"
	}

	_, err = s.faces.Find(ctx, userID)
	switch {
	case err == nil:
		result.Replaced = true
		if result.Warning == "" {
			result.Warning = "existing face enrollment was replaced"
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// first enrollment
	default:
		return FaceEnrollResult{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to check existing enrollment")
	}

	template := models.FaceTemplate{
		UserID:       userID,
		Encoding:     encoded.Encoding,
		RegisteredAt: s.clock.Now(),
	}
	if err := s.faces.Upsert(ctx, template); err != nil {
		s.recordEnrollment(string(models.ModalityFace), "error")
		return FaceEnrollResult{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to persist face template")
	}

	s.recordEnrollment(string(models.ModalityFace), "enrolled")
	event := audit.Event{
		UserID:   userID,
		Modality: string(models.ModalityFace),
		Action:   audit.ActionEnroll,
		Decision: audit.DecisionAllowed,
	}
	if result.Replaced {
		event.Reason = string(dErrors.CodeDuplicateEnrollment)
	}
	s.logAudit(ctx, event, "user_id", userID, "replaced", result.Replaced)

	return result, nil
}

// AuthenticateFace resolves the submitted image against every enrolled face
// template, returning the closest match within tolerance.
func (s *Service) AuthenticateFace(ctx context.Context, image []byte) (models.Match, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.AuthenticateFace",
		trace.WithAttributes(attribute.String("modality", string(models.ModalityFace))))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveAuthenticate(string(models.ModalityFace), time.Now())
	}

	encoded, err := capture.Face(s.detector, image)
	if err != nil {
		s.recordAuthentication(string(models.ModalityFace), "capture_failed")
		s.recordCaptureFailure(string(models.ModalityFace), string(dErrors.CodeOf(err)))
		return models.Match{}, err
	}

	templates, err := s.faces.List(ctx)
	if err != nil {
		return models.Match{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load face templates")
	}

	match, err := s.faceMatcher.Match(encoded.Encoding, templates)
	if err != nil {
		s.recordAuthentication(string(models.ModalityFace), "denied")
		s.logAudit(ctx, audit.Event{
			Modality: string(models.ModalityFace),
			Action:   audit.ActionAuthenticate,
			Decision: audit.DecisionDenied,
			Reason:   dErrors.Reason(err),
		})
		return models.Match{}, err
	}

	if err := s.recordFaceUse(ctx, match.UserID); err != nil {
		s.warn(ctx, "failed to record template usage", "user_id", match.UserID, "error", err)
	}

	s.recordAuthentication(string(models.ModalityFace), "allowed")
	s.observeMatchScore(string(models.ModalityFace), match.Score)
	s.logAudit(ctx, audit.Event{
		UserID:   match.UserID,
		Modality: string(models.ModalityFace),
		Action:   audit.ActionAuthenticate,
		Decision: audit.DecisionAllowed,
	}, "user_id", match.UserID, "score", match.Score)

	return *match, nil
}

func (s *Service) recordFaceUse(ctx context.Context, userID string) error {
	template, err := s.faces.Find(ctx, userID)
	if err != nil {
		return err
	}
	template.RecordUse(s.clock.Now())
	return s.faces.Upsert(ctx, template)
}
