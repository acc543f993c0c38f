// Package matcher resolves identities from normalized samples. Scoring is a
// placeholder heuristic behind the Scorer interface, not a validated
// biometric algorithm; swap the implementation, keep the protocol.
package matcher

import (
	"umid/internal/biometric/models"
	dErrors "umid/pkg/domain-errors"
)

// Scorer rates the similarity of two characteristic vectors on [0,1].
type Scorer interface {
	Score(a, b []int32) float64
}

// ProximityScorer counts positions whose values sit within Tolerance of each
// other, divided by the vector length. Vectors of different lengths are
// compared over the shorter prefix and penalized by the longer length.
type ProximityScorer struct {
	Tolerance int32
}

func (p ProximityScorer) Score(a, b []int32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	within := 0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d <= p.Tolerance {
			within++
		}
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return float64(within) / float64(longest)
}

// Fingerprint matches a live sample against enrolled templates in two phases:
// an exact-signature fast path, then best-candidate proximity scoring.
type Fingerprint struct {
	scorer     Scorer
	acceptance float64 // minimum accepted score on the 0-100 scale
}

func NewFingerprint(scorer Scorer, acceptance float64) *Fingerprint {
	return &Fingerprint{scorer: scorer, acceptance: acceptance}
}

// Match returns the resolved identity or a not_recognized error carrying the
// human-readable reason. An empty template set is "not recognized", never an
// internal failure.
func (m *Fingerprint) Match(sample models.Sample, templates []models.Template) (*models.Match, error) {
	if len(templates) == 0 {
		return nil, dErrors.New(dErrors.CodeNotRecognized, "no fingerprints registered")
	}

	// Phase 1: exact signature hit wins outright.
	for _, t := range templates {
		if t.MatchesSignature(sample.Signature) {
			return &models.Match{UserID: t.UserID, Score: 100}, nil
		}
	}

	// Phase 2: best proximity candidate above the acceptance threshold.
	var best *models.Match
	for _, t := range templates {
		score := m.scorer.Score(sample.Characteristics, t.Characteristics) * 100
		if best == nil || score > best.Score {
			best = &models.Match{UserID: t.UserID, Score: score}
		}
	}
	if best == nil || best.Score < m.acceptance {
		return nil, dErrors.New(dErrors.CodeNotRecognized, "fingerprint not recognized")
	}
	return best, nil
}
