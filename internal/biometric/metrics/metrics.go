package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the biometric module.
// Tracks enrollment/authentication outcomes per modality and the durations
// of the capture-bound critical paths.
type Metrics struct {
	Enrollments          *prometheus.CounterVec
	Authentications      *prometheus.CounterVec
	CaptureFailures      *prometheus.CounterVec
	TemplatesCleaned     prometheus.Counter
	EnrollDuration       *prometheus.HistogramVec
	AuthenticateDuration *prometheus.HistogramVec
	MatchScore           *prometheus.HistogramVec
}

// New creates a new Metrics instance with all biometric module metrics registered.
func New() *Metrics {
	return &Metrics{
		Enrollments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "umid_biometric_enrollments_total",
			Help: "Total enrollment attempts by modality and outcome",
		}, []string{"modality", "outcome"}),
		Authentications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "umid_biometric_authentications_total",
			Help: "Total authentication attempts by modality and outcome",
		}, []string{"modality", "outcome"}),
		CaptureFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "umid_biometric_capture_failures_total",
			Help: "Capture failures by modality and reason",
		}, []string{"modality", "reason"}),
		TemplatesCleaned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "umid_biometric_templates_cleaned_total",
			Help: "Templates removed because their user left the identity registry",
		}),
		EnrollDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "umid_biometric_enroll_duration_seconds",
			Help:    "Duration of enrollment operations (includes capture wait)",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"modality"}),
		AuthenticateDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "umid_biometric_authenticate_duration_seconds",
			Help:    "Duration of authentication operations (includes capture wait)",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"modality"}),
		MatchScore: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "umid_biometric_match_score",
			Help:    "Score distribution of successful matches (0-100)",
			Buckets: []float64{50, 60, 70, 80, 85, 90, 95, 99, 100},
		}, []string{"modality"}),
	}
}

// RecordEnrollment counts one enrollment attempt.
func (m *Metrics) RecordEnrollment(modality, outcome string) {
	m.Enrollments.WithLabelValues(modality, outcome).Inc()
}

// RecordAuthentication counts one authentication attempt.
func (m *Metrics) RecordAuthentication(modality, outcome string) {
	m.Authentications.WithLabelValues(modality, outcome).Inc()
}

// RecordCaptureFailure counts one failed capture.
func (m *Metrics) RecordCaptureFailure(modality, reason string) {
	m.CaptureFailures.WithLabelValues(modality, reason).Inc()
}

// RecordCleaned counts templates removed by the orphan sweep.
func (m *Metrics) RecordCleaned(n int) {
	m.TemplatesCleaned.Add(float64(n))
}

// ObserveEnroll records the duration of an enrollment operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveEnroll(modality string, start time.Time) {
	m.EnrollDuration.WithLabelValues(modality).Observe(time.Since(start).Seconds())
}

// ObserveAuthenticate records the duration of an authentication operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAuthenticate(modality string, start time.Time) {
	m.AuthenticateDuration.WithLabelValues(modality).Observe(time.Since(start).Seconds())
}

// ObserveMatchScore records the score of a successful match.
func (m *Metrics) ObserveMatchScore(modality string, score float64) {
	m.MatchScore.WithLabelValues(modality).Observe(score)
}
