package service

import (
	"context"
	"errors"
	"time"

	"github.com/emirpasic/gods/sets/hashset"

	"umid/internal/audit"
	"umid/internal/scanner"
	dErrors "umid/pkg/domain-errors"
	"umid/pkg/sentinel"
)

// activeWindow is the lookback used for "recently used" counts in Stats.
const activeWindow = 7 * 24 * time.Hour

// TemplateStatus describes a user's enrollments across both modalities.
type TemplateStatus struct {
	UserID      string             `json:"user_id"`
	Fingerprint *FingerprintStatus `json:"fingerprint,omitempty"`
	Face        *FaceStatus        `json:"face,omitempty"`
}

type FingerprintStatus struct {
	Quality      int       `json:"quality"`
	Slot         int       `json:"slot"`
	RegisteredAt time.Time `json:"registered_at"`
	LastUsedAt   time.Time `json:"last_used_at,omitzero"`
	UsageCount   int       `json:"usage_count"`
}

type FaceStatus struct {
	RegisteredAt time.Time `json:"registered_at"`
	LastUsedAt   time.Time `json:"last_used_at,omitzero"`
	UsageCount   int       `json:"usage_count"`
}

// Templates reports what is enrolled for a user. A user with no enrollments
// in either modality is a not-found.
func (s *Service) Templates(ctx context.Context, userID string) (TemplateStatus, error) {
	if userID == "" {
		return TemplateStatus{}, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}

	status := TemplateStatus{UserID: userID}

	fp, err := s.fingerprints.Find(ctx, userID)
	switch {
	case err == nil:
		status.Fingerprint = &FingerprintStatus{
			Quality:      fp.Quality,
			Slot:         fp.ScannerSlot,
			RegisteredAt: fp.RegisteredAt,
			LastUsedAt:   fp.LastUsedAt,
			UsageCount:   fp.UsageCount,
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return TemplateStatus{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load fingerprint template")
	}

	face, err := s.faces.Find(ctx, userID)
	switch {
	case err == nil:
		status.Face = &FaceStatus{
			RegisteredAt: face.RegisteredAt,
			LastUsedAt:   face.LastUsedAt,
			UsageCount:   face.UsageCount,
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return TemplateStatus{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load face template")
	}

	if status.Fingerprint == nil && status.Face == nil {
		return TemplateStatus{}, dErrors.New(dErrors.CodeNotFound, "no biometric enrollments for user")
	}
	return status, nil
}

// DeleteTemplates removes every enrollment for a user, freeing the scanner
// slot if one was assigned. Deleting a user with no enrollments is a
// not-found.
func (s *Service) DeleteTemplates(ctx context.Context, userID string) error {
	if userID == "" {
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	}

	deleted := false

	fp, err := s.fingerprints.Find(ctx, userID)
	switch {
	case err == nil:
		if err := s.scanner.DeleteSlot(fp.ScannerSlot); err != nil {
			s.warn(ctx, "failed to free scanner slot", "user_id", userID, "slot", fp.ScannerSlot, "error", err)
		}
		if err := s.fingerprints.Delete(ctx, userID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to delete fingerprint template")
		}
		deleted = true
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load fingerprint template")
	}

	err = s.faces.Delete(ctx, userID)
	switch {
	case err == nil:
		deleted = true
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to delete face template")
	}

	if !deleted {
		return dErrors.New(dErrors.CodeNotFound, "no biometric enrollments for user")
	}

	s.logAudit(ctx, audit.Event{
		UserID:   userID,
		Action:   audit.ActionDelete,
		Decision: audit.DecisionAllowed,
	}, "user_id", userID)
	return nil
}

// ModalityStats aggregates enrollment and usage counts for one modality.
type ModalityStats struct {
	Enrolled         int `json:"enrolled"`
	RegisteredLately int `json:"registered_last_7_days"`
	ActiveLately     int `json:"active_last_7_days"`
	TotalUsage       int `json:"total_usage"`
}

// Stats is the admin-facing engine summary.
type Stats struct {
	TotalTemplates int `json:"total_templates"`
	DistinctUsers  int `json:"distinct_users"`
	// BothModalities counts users enrolled with a fingerprint and a face.
	BothModalities int                     `json:"both_modalities"`
	MeanQuality    float64                 `json:"mean_fingerprint_quality"`
	Fingerprint    ModalityStats           `json:"fingerprint"`
	Face           ModalityStats           `json:"face"`
	Scanner        scanner.ConnectionState `json:"scanner_state"`
}

// Stats summarizes enrollments, recent activity, and scanner health.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	cutoff := s.clock.Now().Add(-activeWindow)

	fingerprints, err := s.fingerprints.List(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load fingerprint templates")
	}
	faces, err := s.faces.List(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load face templates")
	}

	stats := Stats{Scanner: s.scanner.State()}
	users := hashset.New()
	fpUsers := hashset.New()
	qualitySum := 0
	for _, t := range fingerprints {
		stats.Fingerprint.Enrolled++
		stats.Fingerprint.TotalUsage += t.UsageCount
		if t.RegisteredAt.After(cutoff) {
			stats.Fingerprint.RegisteredLately++
		}
		if !t.LastUsedAt.IsZero() && t.LastUsedAt.After(cutoff) {
			stats.Fingerprint.ActiveLately++
		}
		qualitySum += t.Quality
		users.Add(t.UserID)
		fpUsers.Add(t.UserID)
	}
	for _, t := range faces {
		stats.Face.Enrolled++
		stats.Face.TotalUsage += t.UsageCount
		if t.RegisteredAt.After(cutoff) {
			stats.Face.RegisteredLately++
		}
		if !t.LastUsedAt.IsZero() && t.LastUsedAt.After(cutoff) {
			stats.Face.ActiveLately++
		}
		users.Add(t.UserID)
		if fpUsers.Contains(t.UserID) {
			stats.BothModalities++
		}
	}

	stats.TotalTemplates = len(fingerprints) + len(faces)
	stats.DistinctUsers = users.Size()
	if len(fingerprints) > 0 {
		stats.MeanQuality = float64(qualitySum) / float64(len(fingerprints))
	}
	return stats, nil
}

// CleanupReport lists the orphaned templates removed by a sweep.
type CleanupReport struct {
	RemovedFingerprints []string `json:"removed_fingerprints"`
	RemovedFaces        []string `json:"removed_faces"`
}

// CleanupOrphans deletes templates whose user no longer exists in the
// identity registry. Store failures on individual rows are logged and the
// sweep continues; a partial sweep is still progress.
func (s *Service) CleanupOrphans(ctx context.Context) (CleanupReport, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.CleanupOrphans")
	defer span.End()

	ids, err := s.ids.ListIDs(ctx)
	if err != nil {
		return CleanupReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registered identities")
	}
	valid := hashset.New()
	for _, id := range ids {
		valid.Add(id)
	}

	report := CleanupReport{
		RemovedFingerprints: []string{},
		RemovedFaces:        []string{},
	}

	fingerprints, err := s.fingerprints.List(ctx)
	if err != nil {
		return CleanupReport{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load fingerprint templates")
	}
	for _, t := range fingerprints {
		if valid.Contains(t.UserID) {
			continue
		}
		if err := s.scanner.DeleteSlot(t.ScannerSlot); err != nil {
			s.warn(ctx, "failed to free scanner slot", "user_id", t.UserID, "slot", t.ScannerSlot, "error", err)
		}
		if err := s.fingerprints.Delete(ctx, t.UserID); err != nil {
			s.warn(ctx, "failed to delete orphaned fingerprint template", "user_id", t.UserID, "error", err)
			continue
		}
		report.RemovedFingerprints = append(report.RemovedFingerprints, t.UserID)
	}

	faces, err := s.faces.List(ctx)
	if err != nil {
		return CleanupReport{}, dErrors.Wrap(err, dErrors.CodeStoreIO, "failed to load face templates")
	}
	for _, t := range faces {
		if valid.Contains(t.UserID) {
			continue
		}
		if err := s.faces.Delete(ctx, t.UserID); err != nil {
			s.warn(ctx, "failed to delete orphaned face template", "user_id", t.UserID, "error", err)
			continue
		}
		report.RemovedFaces = append(report.RemovedFaces, t.UserID)
	}

	removed := len(report.RemovedFingerprints) + len(report.RemovedFaces)
	if s.metrics != nil && removed > 0 {
		s.metrics.RecordCleaned(removed)
	}
	if removed > 0 {
		s.logAudit(ctx, audit.Event{
			Action:   audit.ActionCleanup,
			Decision: audit.DecisionAllowed,
		}, "removed_fingerprints", len(report.RemovedFingerprints), "removed_faces", len(report.RemovedFaces))
	}
	return report, nil
}
