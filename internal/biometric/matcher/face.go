package matcher

import (
	"gonum.org/v1/gonum/floats"

	"umid/internal/biometric/models"
	dErrors "umid/pkg/domain-errors"
)

// Face matches a live encoding against enrolled face templates by Euclidean
// distance. A template matches when its distance is at or below the
// tolerance; among acceptable candidates the closest one wins.
type Face struct {
	tolerance float64
}

func NewFace(tolerance float64) *Face {
	return &Face{tolerance: tolerance}
}

// Match returns the best acceptable identity with confidence (1-distance)*100,
// or a not_recognized error with the reason.
func (m *Face) Match(encoding []float64, templates []models.FaceTemplate) (*models.Match, error) {
	if len(templates) == 0 {
		return nil, dErrors.New(dErrors.CodeNotRecognized, "no faces registered")
	}

	bestDistance := m.tolerance + 1
	var bestUser string
	for _, t := range templates {
		if len(t.Encoding) != len(encoding) {
			// Encoding produced by an incompatible detector version.
			continue
		}
		d := floats.Distance(encoding, t.Encoding, 2)
		if d <= m.tolerance && d < bestDistance {
			bestDistance = d
			bestUser = t.UserID
		}
	}
	if bestUser == "" {
		return nil, dErrors.New(dErrors.CodeNotRecognized, "face not recognized")
	}

	confidence := (1 - bestDistance) * 100
	if confidence < 0 {
		confidence = 0
	}
	return &models.Match{UserID: bestUser, Score: confidence}, nil
}
