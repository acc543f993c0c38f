//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"umid/internal/biometric/models"
	"umid/internal/biometric/store"
	"umid/pkg/sentinel"
	"umid/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis        *containers.RedisContainer
	fingerprints *store.RedisTemplateStore
	faces        *store.RedisFaceStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.fingerprints = store.NewRedisTemplateStore(s.redis.Client)
	s.faces = store.NewRedisFaceStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestRoundTrip verifies the CBOR hash-field encoding round-trips.
func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	tpl := newStoredTemplate("user-1")
	s.Require().NoError(s.fingerprints.Upsert(ctx, tpl))

	found, err := s.fingerprints.Find(ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(tpl.Signature, found.Signature)
	s.Equal(tpl.Characteristics, found.Characteristics)
	s.Equal(tpl.Quality, found.Quality)
	s.True(found.RegisteredAt.Equal(tpl.RegisteredAt))
}

// TestListAcrossUsers verifies HGetAll surfaces every enrolled user.
func (s *RedisStoreSuite) TestListAcrossUsers() {
	ctx := context.Background()
	s.Require().NoError(s.fingerprints.Upsert(ctx, newStoredTemplate("user-1")))
	s.Require().NoError(s.fingerprints.Upsert(ctx, newStoredTemplate("user-2")))
	s.Require().NoError(s.fingerprints.Upsert(ctx, newStoredTemplate("user-2"))) // replace

	all, err := s.fingerprints.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

// TestDelete verifies HDel result mapping to ErrNotFound.
func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.fingerprints.Upsert(ctx, newStoredTemplate("user-1")))

	s.Require().NoError(s.fingerprints.Delete(ctx, "user-1"))
	s.ErrorIs(s.fingerprints.Delete(ctx, "user-1"), sentinel.ErrNotFound)
}

// TestFaceStore verifies the face hash is independent of the fingerprint hash.
func (s *RedisStoreSuite) TestFaceStore() {
	ctx := context.Background()
	face := models.FaceTemplate{
		UserID:       "user-1",
		Encoding:     []float64{0.25, 0.75},
		RegisteredAt: time.Now().UTC(),
	}
	s.Require().NoError(s.faces.Upsert(ctx, face))

	found, err := s.faces.Find(ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(face.Encoding, found.Encoding)

	// Fingerprint side stays empty.
	all, err := s.fingerprints.List(ctx)
	s.Require().NoError(err)
	s.Empty(all)
}
