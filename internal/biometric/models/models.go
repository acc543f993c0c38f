// Package models holds the biometric domain types shared by the capture
// pipeline, matchers, stores, and workflows.
package models

import (
	"bytes"
	"time"
)

// Modality distinguishes the two enrolled sample kinds. A user holds at most
// one template per modality; re-enrollment replaces the existing row.
type Modality string

const (
	ModalityFingerprint Modality = "fingerprint"
	ModalityFace        Modality = "face"
)

// NoSlot marks templates with no hardware-resident copy.
const NoSlot = -1

// Sample is one normalized fingerprint capture: the characteristic vector,
// its derived signature digest, and the capture-time quality estimate.
//
// Invariants:
//   - Signature is deterministic over Characteristics
//   - Quality is in [0,100]
//
// Two captures of the same finger are expected to differ in Characteristics
// (and therefore in Signature); "same finger" is the matcher's similarity
// decision, never signature equality.
type Sample struct {
	Characteristics []int32
	Signature       []byte
	Quality         int
}

// Template is one enrolled fingerprint.
type Template struct {
	UserID          string    `json:"user_id" cbor:"1,keyasint"`
	Signature       []byte    `json:"signature" cbor:"2,keyasint"`
	Characteristics []int32   `json:"characteristics" cbor:"3,keyasint"`
	Quality         int       `json:"quality" cbor:"4,keyasint"`
	ScannerSlot     int       `json:"scanner_slot" cbor:"5,keyasint"`
	RegisteredAt    time.Time `json:"registered_at" cbor:"6,keyasint"`
	LastUsedAt      time.Time `json:"last_used_at" cbor:"7,keyasint"`
	UsageCount      int       `json:"usage_count" cbor:"8,keyasint"`
}

// NewTemplate builds a fresh template from the winning enrollment sample.
// LastUsedAt starts at the zero value, meaning "never used".
func NewTemplate(userID string, sample Sample, slot int, now time.Time) Template {
	return Template{
		UserID:          userID,
		Signature:       sample.Signature,
		Characteristics: sample.Characteristics,
		Quality:         sample.Quality,
		ScannerSlot:     slot,
		RegisteredAt:    now,
	}
}

// MatchesSignature reports an exact digest hit, the fast path during
// authentication.
func (t Template) MatchesSignature(signature []byte) bool {
	return len(t.Signature) > 0 && bytes.Equal(t.Signature, signature)
}

// RecordUse marks one successful authentication. Only the authentication
// workflow calls this; enrollment never touches usage fields.
func (t *Template) RecordUse(now time.Time) {
	t.LastUsedAt = now
	t.UsageCount++
}

// NeverUsed reports whether the template has yet to match an authentication.
func (t Template) NeverUsed() bool {
	return t.LastUsedAt.IsZero()
}

// FaceTemplate is one enrolled face encoding. The detector either finds
// exactly one usable face or fails, so no quality score is kept.
type FaceTemplate struct {
	UserID       string    `json:"user_id" cbor:"1,keyasint"`
	Encoding     []float64 `json:"encoding" cbor:"2,keyasint"`
	RegisteredAt time.Time `json:"registered_at" cbor:"3,keyasint"`
	LastUsedAt   time.Time `json:"last_used_at" cbor:"4,keyasint"`
	UsageCount   int       `json:"usage_count" cbor:"5,keyasint"`
}

// RecordUse marks one successful face authentication.
func (t *FaceTemplate) RecordUse(now time.Time) {
	t.LastUsedAt = now
	t.UsageCount++
}

// Match is a resolved identity with the score that cleared the threshold.
// Score is 0–100 for both modalities (face confidence = (1-distance)*100).
type Match struct {
	UserID string
	Score  float64
}
