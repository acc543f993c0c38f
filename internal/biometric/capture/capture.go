// Package capture turns raw sensor output into normalized samples: signature
// digest plus quality score for fingerprints, encoding vectors for faces.
package capture

import (
	"context"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"

	"umid/internal/biometric/models"
	"umid/internal/scanner"
	dErrors "umid/pkg/domain-errors"
	"umid/pkg/sentinel"
)

// DefaultQuality is assumed when a capture yields no measurable
// characteristics.
const DefaultQuality = 80

// Scanner is the slice of the adapter the pipeline needs.
type Scanner interface {
	Capture(ctx context.Context) (scanner.RawImage, error)
}

// Fingerprint blocks on the adapter until a sample arrives or the capture
// window closes, then normalizes the raw image.
func Fingerprint(ctx context.Context, s Scanner) (models.Sample, error) {
	raw, err := s.Capture(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrTimeout) {
			return models.Sample{}, dErrors.Wrap(err, dErrors.CodeCaptureTimeout, "no finger detected within the capture window")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return models.Sample{}, dErrors.Wrap(err, dErrors.CodeCaptureTimeout, "capture canceled")
		}
		return models.Sample{}, dErrors.Wrap(err, dErrors.CodeScannerUnavailable, "fingerprint capture failed")
	}
	return Normalize(raw), nil
}

// Normalize converts a raw image into a Sample: signature = BLAKE2b-256 over
// the characteristic vector, quality = share of non-zero entries.
func Normalize(raw scanner.RawImage) models.Sample {
	return models.Sample{
		Characteristics: raw.Characteristics,
		Signature:       Signature(raw.Characteristics),
		Quality:         quality(raw.Characteristics),
	}
}

// Signature derives the fixed-length digest used for the exact-match fast
// path. Deterministic: equal vectors always produce equal signatures.
func Signature(characteristics []int32) []byte {
	buf := make([]byte, 4*len(characteristics))
	for i, c := range characteristics {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(c))
	}
	sum := blake2b.Sum256(buf)
	return sum[:]
}

func quality(characteristics []int32) int {
	if len(characteristics) == 0 {
		return DefaultQuality
	}
	nonzero := 0
	for _, c := range characteristics {
		if c != 0 {
			nonzero++
		}
	}
	q := (nonzero*100 + len(characteristics)/2) / len(characteristics)
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}
