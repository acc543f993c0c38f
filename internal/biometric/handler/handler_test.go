package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"io"
	"log/slog"

	"umid/internal/biometric/capture"
	"umid/internal/biometric/service"
	"umid/internal/biometric/store"
	"umid/internal/platform/config"
	"umid/internal/registry"
	"umid/internal/scanner"
)

// scriptedScanner feeds canned captures into the real service.
type scriptedScanner struct {
	captures []scanner.RawImage
	next     int
}

func (f *scriptedScanner) Capture(ctx context.Context) (scanner.RawImage, error) {
	if err := ctx.Err(); err != nil {
		return scanner.RawImage{}, err
	}
	if f.next >= len(f.captures) {
		return scanner.RawImage{}, nil
	}
	img := f.captures[f.next]
	f.next++
	return img, nil
}

func (f *scriptedScanner) State() scanner.ConnectionState  { return scanner.StateDemo }
func (f *scriptedScanner) StoreInSlot([]int32) (int, error) { return 0, nil }
func (f *scriptedScanner) DeleteSlot(int) error             { return nil }

type fixedDetector struct {
	encoding []float64
}

func (d fixedDetector) Detect(image []byte) ([]capture.Region, error) {
	if len(image) == 0 {
		return nil, nil
	}
	return []capture.Region{{Right: 1, Bottom: 1}}, nil
}

func (d fixedDetector) Encode([]byte, capture.Region) ([]float64, error) {
	return d.encoding, nil
}

// HandlerSuite wires the real service over in-memory stores; the handler
// tests validate HTTP concerns (parsing, status mapping, envelopes).
type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	scanner *scriptedScanner
	ids     *registry.InMemory
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.scanner = &scriptedScanner{}
	s.ids = registry.NewInMemory("user-1")

	encoding := make([]float64, capture.EncodingLength)
	encoding[0] = 0.5

	svc := service.New(
		store.NewMemoryTemplateStore(),
		store.NewMemoryFaceStore(),
		s.scanner,
		fixedDetector{encoding: encoding},
		s.ids,
		config.Matching{
			ProximityTolerance:   10,
			ConsistencyThreshold: 0.7,
			AcceptanceThreshold:  80,
			FaceTolerance:        0.6,
		},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger)

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	s.router = r
}

func (s *HandlerSuite) script(qualities ...int) {
	s.scanner.captures = s.scanner.captures[:0]
	s.scanner.next = 0
	for _, q := range qualities {
		chars := make([]int32, 100)
		for i := 0; i < q; i++ {
			chars[i] = 50
		}
		s.scanner.captures = append(s.scanner.captures, scanner.RawImage{Characteristics: chars})
	}
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestEnrollFingerprint() {
	s.Run("returns 201 with the stored quality", func() {
		s.script(82, 91)

		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll",
			EnrollFingerprintRequest{UserID: "user-1"})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		var resp service.EnrollResult
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("user-1", resp.UserID)
		s.Equal(91, resp.Quality)
	})

	s.Run("rejects malformed JSON", func() {
		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll", []byte("not json"))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown user maps to 404", func() {
		s.script(90, 90)
		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll",
			EnrollFingerprintRequest{UserID: "stranger"})
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("inconsistent captures map to 422", func() {
		s.script(90, 40)
		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll",
			EnrollFingerprintRequest{UserID: "user-1"})
		s.Equal(http.StatusUnprocessableEntity, rec.Code)

		var body map[string]string
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Equal("enrollment_mismatch", body["error"])
	})
}

func (s *HandlerSuite) TestAuthenticateFingerprint() {
	s.Run("unknown print maps to 401", func() {
		s.script(90)
		rec := s.do(http.MethodPost, "/biometric/fingerprint/authenticate", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)

		var body map[string]string
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Equal("not_recognized", body["error"])
	})

	s.Run("match returns the resolved user", func() {
		s.script(90, 90)
		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll",
			EnrollFingerprintRequest{UserID: "user-1"})
		s.Require().Equal(http.StatusCreated, rec.Code)

		s.script(90)
		rec = s.do(http.MethodPost, "/biometric/fingerprint/authenticate", nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp MatchResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("user-1", resp.UserID)
		s.Equal(float64(100), resp.Score)
	})
}

func (s *HandlerSuite) TestFaceEndpoints() {
	image := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))

	s.Run("enroll then authenticate round-trips", func() {
		rec := s.do(http.MethodPost, "/biometric/face/enroll",
			EnrollFaceRequest{UserID: "user-1", Image: image})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		rec = s.do(http.MethodPost, "/biometric/face/authenticate",
			AuthenticateFaceRequest{Image: image})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp MatchResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("user-1", resp.UserID)
	})

	s.Run("missing image maps to 400", func() {
		rec := s.do(http.MethodPost, "/biometric/face/enroll",
			EnrollFaceRequest{UserID: "user-1"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid base64 maps to 400", func() {
		rec := s.do(http.MethodPost, "/biometric/face/enroll",
			EnrollFaceRequest{UserID: "user-1", Image: "!!!not base64!!!"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestTemplateEndpoints() {
	s.Run("status of unenrolled user is 404", func() {
		rec := s.do(http.MethodGet, "/biometric/templates/user-1", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("status and delete after enrollment", func() {
		s.script(90, 90)
		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll",
			EnrollFingerprintRequest{UserID: "user-1"})
		s.Require().Equal(http.StatusCreated, rec.Code)

		rec = s.do(http.MethodGet, "/biometric/templates/user-1", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var status service.TemplateStatus
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&status))
		s.NotNil(status.Fingerprint)
		s.Nil(status.Face)

		rec = s.do(http.MethodDelete, "/biometric/templates/user-1", nil)
		s.Equal(http.StatusNoContent, rec.Code)

		rec = s.do(http.MethodGet, "/biometric/templates/user-1", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestAdminEndpoints() {
	s.Run("stats report enrollments and scanner state", func() {
		s.script(90, 90)
		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll",
			EnrollFingerprintRequest{UserID: "user-1"})
		s.Require().Equal(http.StatusCreated, rec.Code)

		rec = s.do(http.MethodGet, "/admin/biometric/stats", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var stats service.Stats
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&stats))
		s.Equal(1, stats.Fingerprint.Enrolled)
		s.Equal(scanner.StateDemo, stats.Scanner)
	})

	s.Run("cleanup removes templates for deregistered users", func() {
		s.script(90, 90)
		rec := s.do(http.MethodPost, "/biometric/fingerprint/enroll",
			EnrollFingerprintRequest{UserID: "user-1"})
		s.Require().Equal(http.StatusCreated, rec.Code)

		s.ids.Remove("user-1")

		rec = s.do(http.MethodPost, "/admin/biometric/cleanup", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var report service.CleanupReport
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&report))
		s.Equal([]string{"user-1"}, report.RemovedFingerprints)
	})
}
