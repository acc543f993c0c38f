package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"umid/internal/biometric/models"
	"umid/pkg/sentinel"
)

const (
	fingerprintHashKey = "biometric:fingerprints"
	faceHashKey        = "biometric:faces"
)

// RedisTemplateStore keeps fingerprint templates in a single Redis hash,
// one CBOR-encoded field per user. HSET/HDEL give per-user atomicity; the
// service never needs cross-template transactions.
type RedisTemplateStore struct {
	client redis.Cmdable
}

func NewRedisTemplateStore(client redis.Cmdable) *RedisTemplateStore {
	return &RedisTemplateStore{client: client}
}

func (s *RedisTemplateStore) Upsert(ctx context.Context, t models.Template) error {
	raw, err := cbor.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode fingerprint template: %w", err)
	}
	if err := s.client.HSet(ctx, fingerprintHashKey, t.UserID, raw).Err(); err != nil {
		return fmt.Errorf("upsert fingerprint template: %w", err)
	}
	return nil
}

func (s *RedisTemplateStore) Find(ctx context.Context, userID string) (models.Template, error) {
	raw, err := s.client.HGet(ctx, fingerprintHashKey, userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Template{}, sentinel.ErrNotFound
		}
		return models.Template{}, fmt.Errorf("find fingerprint template: %w", err)
	}
	var t models.Template
	if err := cbor.Unmarshal(raw, &t); err != nil {
		return models.Template{}, fmt.Errorf("decode fingerprint template: %w", err)
	}
	return t, nil
}

func (s *RedisTemplateStore) List(ctx context.Context) ([]models.Template, error) {
	entries, err := s.client.HGetAll(ctx, fingerprintHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list fingerprint templates: %w", err)
	}
	out := make([]models.Template, 0, len(entries))
	for userID, raw := range entries {
		var t models.Template
		if err := cbor.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode fingerprint template for %s: %w", userID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisTemplateStore) Delete(ctx context.Context, userID string) error {
	n, err := s.client.HDel(ctx, fingerprintHashKey, userID).Result()
	if err != nil {
		return fmt.Errorf("delete fingerprint template: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// RedisFaceStore keeps face templates in a Redis hash mirroring
// RedisTemplateStore's layout.
type RedisFaceStore struct {
	client redis.Cmdable
}

func NewRedisFaceStore(client redis.Cmdable) *RedisFaceStore {
	return &RedisFaceStore{client: client}
}

func (s *RedisFaceStore) Upsert(ctx context.Context, t models.FaceTemplate) error {
	raw, err := cbor.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode face template: %w", err)
	}
	if err := s.client.HSet(ctx, faceHashKey, t.UserID, raw).Err(); err != nil {
		return fmt.Errorf("upsert face template: %w", err)
	}
	return nil
}

func (s *RedisFaceStore) Find(ctx context.Context, userID string) (models.FaceTemplate, error) {
	raw, err := s.client.HGet(ctx, faceHashKey, userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.FaceTemplate{}, sentinel.ErrNotFound
		}
		return models.FaceTemplate{}, fmt.Errorf("find face template: %w", err)
	}
	var t models.FaceTemplate
	if err := cbor.Unmarshal(raw, &t); err != nil {
		return models.FaceTemplate{}, fmt.Errorf("decode face template: %w", err)
	}
	return t, nil
}

func (s *RedisFaceStore) List(ctx context.Context) ([]models.FaceTemplate, error) {
	entries, err := s.client.HGetAll(ctx, faceHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list face templates: %w", err)
	}
	out := make([]models.FaceTemplate, 0, len(entries))
	for userID, raw := range entries {
		var t models.FaceTemplate
		if err := cbor.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode face template for %s: %w", userID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisFaceStore) Delete(ctx context.Context, userID string) error {
	n, err := s.client.HDel(ctx, faceHashKey, userID).Result()
	if err != nil {
		return fmt.Errorf("delete face template: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
