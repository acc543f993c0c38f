package store

import (
	"context"
	"sync"

	"umid/internal/biometric/models"
	"umid/pkg/sentinel"
)

// In-memory stores keep tests and demo deployments lightweight. All template
// mutations serialize behind a single writer lock.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]models.Template
}

func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[string]models.Template)}
}

func (s *MemoryTemplateStore) Upsert(_ context.Context, template models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[template.UserID] = copyTemplate(template)
	return nil
}

func (s *MemoryTemplateStore) Find(_ context.Context, userID string) (models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.templates[userID]; ok {
		return copyTemplate(t), nil
	}
	return models.Template{}, sentinel.ErrNotFound
}

func (s *MemoryTemplateStore) List(_ context.Context) ([]models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, copyTemplate(t))
	}
	return out, nil
}

func (s *MemoryTemplateStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[userID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.templates, userID)
	return nil
}

// copyTemplate detaches the slice fields so callers can't mutate stored rows
// through aliased memory.
func copyTemplate(t models.Template) models.Template {
	t.Signature = append([]byte(nil), t.Signature...)
	t.Characteristics = append([]int32(nil), t.Characteristics...)
	return t
}

type MemoryFaceStore struct {
	mu        sync.RWMutex
	templates map[string]models.FaceTemplate
}

func NewMemoryFaceStore() *MemoryFaceStore {
	return &MemoryFaceStore{templates: make(map[string]models.FaceTemplate)}
}

func (s *MemoryFaceStore) Upsert(_ context.Context, template models.FaceTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[template.UserID] = copyFaceTemplate(template)
	return nil
}

func (s *MemoryFaceStore) Find(_ context.Context, userID string) (models.FaceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.templates[userID]; ok {
		return copyFaceTemplate(t), nil
	}
	return models.FaceTemplate{}, sentinel.ErrNotFound
}

func (s *MemoryFaceStore) List(_ context.Context) ([]models.FaceTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FaceTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, copyFaceTemplate(t))
	}
	return out, nil
}

func (s *MemoryFaceStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[userID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.templates, userID)
	return nil
}

func copyFaceTemplate(t models.FaceTemplate) models.FaceTemplate {
	t.Encoding = append([]float64(nil), t.Encoding...)
	return t
}
