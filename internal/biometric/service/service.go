// Package service orchestrates the biometric workflows: enrollment,
// authentication, template administration, and registry reconciliation.
package service

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"umid/internal/audit"
	"umid/internal/biometric/capture"
	"umid/internal/biometric/matcher"
	biometrics "umid/internal/biometric/metrics"
	"umid/internal/biometric/models"
	"umid/internal/platform/config"
	"umid/internal/platform/middleware"
	"umid/internal/registry"
	"umid/internal/scanner"
)

// TemplateStore is the persistence port for fingerprint templates.
type TemplateStore interface {
	Upsert(ctx context.Context, template models.Template) error
	Find(ctx context.Context, userID string) (models.Template, error)
	List(ctx context.Context) ([]models.Template, error)
	Delete(ctx context.Context, userID string) error
}

// FaceStore is the persistence port for face templates.
type FaceStore interface {
	Upsert(ctx context.Context, template models.FaceTemplate) error
	Find(ctx context.Context, userID string) (models.FaceTemplate, error)
	List(ctx context.Context) ([]models.FaceTemplate, error)
	Delete(ctx context.Context, userID string) error
}

// Scanner is the hardware port consumed by the fingerprint workflows.
type Scanner interface {
	Capture(ctx context.Context) (scanner.RawImage, error)
	State() scanner.ConnectionState
	StoreInSlot(characteristics []int32) (int, error)
	DeleteSlot(slot int) error
}

// AuditPublisher records domain events.
type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service orchestrates biometric enrollment and matching.
type Service struct {
	fingerprints TemplateStore
	faces        FaceStore
	scanner      Scanner
	detector     capture.FaceDetector
	ids          registry.IdentityRegistry

	fpMatcher   *matcher.Fingerprint
	faceMatcher *matcher.Face
	scorer      matcher.Scorer
	matching    config.Matching

	clock          clockwork.Clock
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *biometrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *biometrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New constructs a Service. Matchers are built from the matching thresholds;
// the same proximity scorer drives both matching and the enrollment
// consistency check so the two stay calibrated together.
func New(
	fingerprints TemplateStore,
	faces FaceStore,
	scn Scanner,
	detector capture.FaceDetector,
	ids registry.IdentityRegistry,
	matching config.Matching,
	opts ...Option,
) *Service {
	scorer := matcher.ProximityScorer{Tolerance: matching.ProximityTolerance}
	s := &Service{
		fingerprints: fingerprints,
		faces:        faces,
		scanner:      scn,
		detector:     detector,
		ids:          ids,
		fpMatcher:    matcher.NewFingerprint(scorer, matching.AcceptanceThreshold),
		faceMatcher:  matcher.NewFace(matching.FaceTolerance),
		scorer:       scorer,
		matching:     matching,
		clock:        clockwork.NewRealClock(),
		tracer:       otel.Tracer("umid/internal/biometric/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) logAudit(ctx context.Context, event audit.Event, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event.Action, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event.Action, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if actor := middleware.GetOperatorID(ctx); actor != "" {
		event.ActorID = actor
	}
	_ = s.auditPublisher.Emit(ctx, event)
}

func (s *Service) recordEnrollment(modality, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordEnrollment(modality, outcome)
	}
}

func (s *Service) recordAuthentication(modality, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAuthentication(modality, outcome)
	}
}

func (s *Service) recordCaptureFailure(modality, reason string) {
	if s.metrics != nil {
		s.metrics.RecordCaptureFailure(modality, reason)
	}
}

func (s *Service) observeMatchScore(modality string, score float64) {
	if s.metrics != nil {
		s.metrics.ObserveMatchScore(modality, score)
	}
}
