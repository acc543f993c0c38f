package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"umid/internal/audit"
	"umid/internal/biometric/capture"
	"umid/internal/biometric/models"
	"umid/internal/scanner"
	dErrors "umid/pkg/domain-errors"
	"umid/pkg/sentinel"
)

// demoConsistencyFloor is the minimum quality both captures must clear in
// demo mode, where synthetic samples never resemble each other and a
// similarity check would always fail.
const demoConsistencyFloor = 70

// EnrollResult reports the outcome of a fingerprint enrollment.
type EnrollResult struct {
	UserID   string `json:"user_id"`
	Quality  int    `json:"quality"`
	Slot     int    `json:"slot"`
	Replaced bool   `json:"replaced"`
	Warning  string `json:"warning,omitempty"`
}

// EnrollFingerprint captures two samples, verifies they came from the same
// finger, and stores the higher-quality one as the user's single fingerprint
// template. Re-enrollment replaces the previous template.
func (s *Service) EnrollFingerprint(ctx context.Context, userID string) (EnrollResult, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.EnrollFingerprint",
		trace.WithAttributes(attribute.String("modality", string(models.ModalityFingerprint))))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveEnroll(string(models.ModalityFingerprint), time.Now())
	}

	if err := s.requireKnownUser(ctx, userID); err != nil {
		s.recordEnrollment(string(models.ModalityFingerprint), "rejected")
		return EnrollResult{}, err
	}

	first, err := s.captureFingerprint(ctx)
	if err != nil {
		s.recordEnrollment(string(models.ModalityFingerprint), "capture_failed")
		return EnrollResult{}, err
	}
	second, err := s.captureFingerprint(ctx)
	if err != nil {
		s.recordEnrollment(string(models.ModalityFingerprint), "capture_failed")
		return EnrollResult{}, err
	}

	if err := s.checkConsistency(first, second); err != nil {
		s.recordEnrollment(string(models.ModalityFingerprint), "mismatch")
		s.logAudit(ctx, audit.Event{
			UserID:   userID,
			Modality: string(models.ModalityFingerprint),
			Action:   audit.ActionEnroll,
			Decision: audit.DecisionDenied,
			Reason:   "captures did not match",
		}, "user_id", userID)
		return EnrollResult{}, err
	}

	winner := first
	if second.Quality > first.Quality {
		winner = second
	}

	result := EnrollResult{UserID: userID, Quality: winner.Quality, Slot: models.NoSlot}

	previous, err := s.fingerprints.Find(ctx, userID)
	switch {
	case err == nil:
		result.Replaced = true
		result.Warning = "existing fingerprint enrollment was replaced"
		if err := s.scanner.DeleteSlot(previous.ScannerSlot); err != nil {
			s.warn(ctx, "failed to free previous scanner slot", "user_id", userID, "slot", previous.ScannerSlot, "error", err)
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// first enrollment
	default:
		return EnrollResult{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to check existing enrollment")
	}

	if s.scanner.State() == scanner.StateConnected {
		slot, err := s.scanner.StoreInSlot(winner.Characteristics)
		if err != nil {
			s.warn(ctx, "failed to store template on scanner", "user_id", userID, "error", err)
		} else {
			result.Slot = slot
		}
	}

	template := models.NewTemplate(userID, winner, result.Slot, s.clock.Now())
	if err := s.fingerprints.Upsert(ctx, template); err != nil {
		s.recordEnrollment(string(models.ModalityFingerprint), "error")
		return EnrollResult{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to persist fingerprint template")
	}

	s.recordEnrollment(string(models.ModalityFingerprint), "enrolled")
	event := audit.Event{
		UserID:   userID,
		Modality: string(models.ModalityFingerprint),
		Action:   audit.ActionEnroll,
		Decision: audit.DecisionAllowed,
	}
	if result.Replaced {
		event.Reason = string(dErrors.CodeDuplicateEnrollment)
	}
	s.logAudit(ctx, event, "user_id", userID, "quality", winner.Quality, "replaced", result.Replaced)

	return result, nil
}

// AuthenticateFingerprint captures one sample and resolves it against every
// enrolled template. Usage tracking mutates only on success.
func (s *Service) AuthenticateFingerprint(ctx context.Context) (models.Match, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.AuthenticateFingerprint",
		trace.WithAttributes(attribute.String("modality", string(models.ModalityFingerprint))))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveAuthenticate(string(models.ModalityFingerprint), time.Now())
	}

	sample, err := s.captureFingerprint(ctx)
	if err != nil {
		s.recordAuthentication(string(models.ModalityFingerprint), "capture_failed")
		return models.Match{}, err
	}

	templates, err := s.fingerprints.List(ctx)
	if err != nil {
		return models.Match{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load fingerprint templates")
	}

	match, err := s.fpMatcher.Match(sample, templates)
	if err != nil {
		s.recordAuthentication(string(models.ModalityFingerprint), "denied")
		s.logAudit(ctx, audit.Event{
			Modality: string(models.ModalityFingerprint),
			Action:   audit.ActionAuthenticate,
			Decision: audit.DecisionDenied,
			Reason:   dErrors.Reason(err),
		})
		return models.Match{}, err
	}

	if err := s.recordFingerprintUse(ctx, match.UserID); err != nil {
		s.warn(ctx, "failed to record template usage", "user_id", match.UserID, "error", err)
	}

	s.recordAuthentication(string(models.ModalityFingerprint), "allowed")
	s.observeMatchScore(string(models.ModalityFingerprint), match.Score)
	s.logAudit(ctx, audit.Event{
		UserID:   match.UserID,
		Modality: string(models.ModalityFingerprint),
		Action:   audit.ActionAuthenticate,
		Decision: audit.DecisionAllowed,
	}, "user_id", match.UserID, "score", match.Score)

	return *match, nil
}

func (s *Service) captureFingerprint(ctx context.Context) (models.Sample, error) {
	sample, err := capture.Fingerprint(ctx, s.scanner)
	if err != nil {
		s.recordCaptureFailure(string(models.ModalityFingerprint), string(dErrors.CodeOf(err)))
		return models.Sample{}, err
	}
	return sample, nil
}

// checkConsistency decides whether two captures plausibly came from the same
// finger. Real hardware gets a similarity check; demo mode falls back to a
// per-capture quality floor.
func (s *Service) checkConsistency(first, second models.Sample) error {
	if s.scanner.State() == scanner.StateDemo {
		if first.Quality <= demoConsistencyFloor || second.Quality <= demoConsistencyFloor {
			return dErrors.New(dErrors.CodeEnrollmentMismatch,
				fmt.Sprintf("capture quality too low for enrollment (%d, %d)", first.Quality, second.Quality))
		}
		return nil
	}
	if s.scorer.Score(first.Characteristics, second.Characteristics) < s.matching.ConsistencyThreshold {
		return dErrors.New(dErrors.CodeEnrollmentMismatch, "captures did not match; place the same finger twice")
	}
	return nil
}

func (s *Service) recordFingerprintUse(ctx context.Context, userID string) error {
	template, err := s.fingerprints.Find(ctx, userID)
	if err != nil {
		return err
	}
	template.RecordUse(s.clock.Now())
	return s.fingerprints.Upsert(ctx, template)
}

func (s *Service) requireKnownUser(ctx context.Context, userID string) error {
	if userID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	exists, err := s.ids.Exists(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check identity registry")
	}
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "user is not registered")
	}
	return nil
}

func (s *Service) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
