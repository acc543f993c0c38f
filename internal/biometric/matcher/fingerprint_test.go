package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umid/internal/biometric/capture"
	"umid/internal/biometric/models"
	dErrors "umid/pkg/domain-errors"
)

func enrolled(userID string, chars []int32) models.Template {
	sample := models.Sample{
		Characteristics: chars,
		Signature:       capture.Signature(chars),
		Quality:         90,
	}
	return models.NewTemplate(userID, sample, models.NoSlot, time.Now())
}

func TestProximityScorer(t *testing.T) {
	scorer := ProximityScorer{Tolerance: 10}

	t.Run("identical vectors score 1", func(t *testing.T) {
		chars := []int32{10, 20, 30, 40}
		assert.Equal(t, 1.0, scorer.Score(chars, chars))
	})

	t.Run("deviations within tolerance still count", func(t *testing.T) {
		a := []int32{10, 20, 30, 40}
		b := []int32{20, 10, 40, 30}
		assert.Equal(t, 1.0, scorer.Score(a, b))
	})

	t.Run("deviations beyond tolerance drop the score", func(t *testing.T) {
		a := []int32{10, 20, 30, 40}
		b := []int32{10, 20, 100, 200}
		assert.Equal(t, 0.5, scorer.Score(a, b))
	})

	t.Run("length mismatch divides by the longer vector", func(t *testing.T) {
		a := []int32{10, 20}
		b := []int32{10, 20, 30, 40}
		assert.Equal(t, 0.5, scorer.Score(a, b))
	})

	t.Run("two empty vectors do not match", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.Score(nil, nil))
	})
}

func TestFingerprintMatch(t *testing.T) {
	m := NewFingerprint(ProximityScorer{Tolerance: 10}, 80)

	probe := func(chars []int32) models.Sample {
		return models.Sample{Characteristics: chars, Signature: capture.Signature(chars), Quality: 90}
	}

	t.Run("empty template set is not recognized", func(t *testing.T) {
		_, err := m.Match(probe([]int32{1, 2, 3}), nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotRecognized))
	})

	t.Run("exact signature wins with score 100", func(t *testing.T) {
		chars := []int32{5, 10, 15, 20}
		templates := []models.Template{
			enrolled("other", []int32{100, 200, 300, 400}),
			enrolled("target", chars),
		}

		match, err := m.Match(probe(chars), templates)
		require.NoError(t, err)
		assert.Equal(t, "target", match.UserID)
		assert.Equal(t, float64(100), match.Score)
	})

	t.Run("best proximity candidate above threshold wins", func(t *testing.T) {
		base := make([]int32, 10)
		for i := range base {
			base[i] = int32(100 + i)
		}
		near := append([]int32(nil), base...)
		near[0] += 5 // still within tolerance
		farther := append([]int32(nil), base...)
		farther[0] += 50
		farther[1] += 50

		templates := []models.Template{
			enrolled("farther", farther),
			enrolled("near", near),
		}

		match, err := m.Match(probe(base), templates)
		require.NoError(t, err)
		assert.Equal(t, "near", match.UserID)
		assert.Equal(t, float64(100), match.Score)
	})

	t.Run("below threshold is not recognized", func(t *testing.T) {
		templates := []models.Template{enrolled("other", []int32{1000, 2000, 3000, 4000})}

		_, err := m.Match(probe([]int32{1, 2, 3, 4}), templates)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotRecognized))
	})
}
