package handler

import (
	"encoding/base64"
	"strings"

	dErrors "umid/pkg/domain-errors"
)

type EnrollFingerprintRequest struct {
	UserID string `json:"user_id"`
}

type EnrollFaceRequest struct {
	UserID string `json:"user_id"`
	Image  string `json:"image"`
}

func (r EnrollFaceRequest) DecodedImage() ([]byte, error) {
	return decodeImage(r.Image)
}

type AuthenticateFaceRequest struct {
	Image string `json:"image"`
}

func (r AuthenticateFaceRequest) DecodedImage() ([]byte, error) {
	return decodeImage(r.Image)
}

// decodeImage accepts standard base64, with or without a data-URL prefix.
func decodeImage(s string) ([]byte, error) {
	if s == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "image is required")
	}
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "image must be base64 encoded")
	}
	return raw, nil
}

type MatchResponse struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
}
