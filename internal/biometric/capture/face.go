package capture

import (
	"golang.org/x/crypto/blake2b"

	dErrors "umid/pkg/domain-errors"
)

// EncodingLength is the fixed face encoding dimension. Stored and live
// encodings must agree on it for distance scoring to mean anything.
const EncodingLength = 128

// Region is one detected face bounding box in pixel coordinates.
type Region struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// FaceDetector finds face regions in a captured image and encodes one region
// into a fixed-length vector. Real detectors wrap an external model; the demo
// implementation below is deterministic and dependency-free.
type FaceDetector interface {
	Detect(image []byte) ([]Region, error)
	Encode(image []byte, region Region) ([]float64, error)
}

// FaceResult carries the encoding plus the non-fatal multiple-faces flag.
type FaceResult struct {
	Encoding      []float64
	MultipleFaces bool
}

// Face runs detection on an already-captured image. Zero regions abort; more
// than one proceeds with the first and flags the result.
func Face(detector FaceDetector, image []byte) (FaceResult, error) {
	regions, err := detector.Detect(image)
	if err != nil {
		return FaceResult{}, dErrors.Wrap(err, dErrors.CodeNoFaceDetected, "face detection failed")
	}
	if len(regions) == 0 {
		return FaceResult{}, dErrors.New(dErrors.CodeNoFaceDetected, "no face detected in the image")
	}

	encoding, err := detector.Encode(image, regions[0])
	if err != nil {
		return FaceResult{}, dErrors.Wrap(err, dErrors.CodeNoFaceDetected, "could not encode detected face")
	}
	return FaceResult{Encoding: encoding, MultipleFaces: len(regions) > 1}, nil
}

// DemoDetector treats any non-empty image as exactly one face and derives a
// deterministic encoding from the image bytes. It stands in for a real
// detector in demo deployments and tests.
type DemoDetector struct{}

func (DemoDetector) Detect(image []byte) ([]Region, error) {
	if len(image) == 0 {
		return nil, nil
	}
	return []Region{{Top: 0, Right: 1, Bottom: 1, Left: 0}}, nil
}

func (DemoDetector) Encode(image []byte, _ Region) ([]float64, error) {
	if len(image) == 0 {
		return nil, dErrors.New(dErrors.CodeNoFaceDetected, "empty image")
	}
	// Stretch a 32-byte digest into the full encoding length so similar
	// images produce identical vectors and distinct images diverge.
	sum := blake2b.Sum256(image)
	encoding := make([]float64, EncodingLength)
	for i := range encoding {
		encoding[i] = float64(sum[i%len(sum)]) / 255.0
	}
	return encoding, nil
}
