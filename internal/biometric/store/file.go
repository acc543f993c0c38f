package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"umid/internal/biometric/models"
	"umid/pkg/sentinel"
)

// FileStore keeps both template tables in one CBOR file. Every mutation
// rewrites the whole file to a temp path and renames it into place, so a
// failed write never corrupts unrelated rows. Intended for single-node kiosk
// deployments where a database is overkill.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	table fileTable
}

type fileTable struct {
	Fingerprints map[string]models.Template     `cbor:"1,keyasint"`
	Faces        map[string]models.FaceTemplate `cbor:"2,keyasint"`
}

// OpenFile loads an existing store or starts an empty one. The parent
// directory is created on demand.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		table: fileTable{
			Fingerprints: make(map[string]models.Template),
			Faces:        make(map[string]models.FaceTemplate),
		},
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read template store %s: %w", path, err)
	}
	if len(raw) > 0 {
		if err := cbor.Unmarshal(raw, &s.table); err != nil {
			return nil, fmt.Errorf("decode template store %s: %w", path, err)
		}
	}
	if s.table.Fingerprints == nil {
		s.table.Fingerprints = make(map[string]models.Template)
	}
	if s.table.Faces == nil {
		s.table.Faces = make(map[string]models.FaceTemplate)
	}
	return s, nil
}

// flushLocked rewrites the whole file atomically. Callers hold the write lock.
func (s *FileStore) flushLocked() error {
	raw, err := cbor.Marshal(s.table)
	if err != nil {
		return fmt.Errorf("encode template store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write template store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit template store: %w", err)
	}
	return nil
}

// Fingerprints returns the TemplateStore facet backed by this file.
func (s *FileStore) Fingerprints() TemplateStore {
	return &fileTemplateStore{f: s}
}

// Faces returns the FaceStore facet backed by this file.
func (s *FileStore) Faces() FaceStore {
	return &fileFaceStore{f: s}
}

type fileTemplateStore struct {
	f *FileStore
}

func (s *fileTemplateStore) Upsert(_ context.Context, template models.Template) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	prev, existed := s.f.table.Fingerprints[template.UserID]
	s.f.table.Fingerprints[template.UserID] = copyTemplate(template)
	if err := s.f.flushLocked(); err != nil {
		// Roll the in-memory table back so memory and disk stay in sync.
		if existed {
			s.f.table.Fingerprints[template.UserID] = prev
		} else {
			delete(s.f.table.Fingerprints, template.UserID)
		}
		return err
	}
	return nil
}

func (s *fileTemplateStore) Find(_ context.Context, userID string) (models.Template, error) {
	s.f.mu.RLock()
	defer s.f.mu.RUnlock()
	if t, ok := s.f.table.Fingerprints[userID]; ok {
		return copyTemplate(t), nil
	}
	return models.Template{}, sentinel.ErrNotFound
}

func (s *fileTemplateStore) List(_ context.Context) ([]models.Template, error) {
	s.f.mu.RLock()
	defer s.f.mu.RUnlock()
	out := make([]models.Template, 0, len(s.f.table.Fingerprints))
	for _, t := range s.f.table.Fingerprints {
		out = append(out, copyTemplate(t))
	}
	return out, nil
}

func (s *fileTemplateStore) Delete(_ context.Context, userID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	prev, ok := s.f.table.Fingerprints[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.f.table.Fingerprints, userID)
	if err := s.f.flushLocked(); err != nil {
		s.f.table.Fingerprints[userID] = prev
		return err
	}
	return nil
}

type fileFaceStore struct {
	f *FileStore
}

func (s *fileFaceStore) Upsert(_ context.Context, template models.FaceTemplate) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	prev, existed := s.f.table.Faces[template.UserID]
	s.f.table.Faces[template.UserID] = copyFaceTemplate(template)
	if err := s.f.flushLocked(); err != nil {
		if existed {
			s.f.table.Faces[template.UserID] = prev
		} else {
			delete(s.f.table.Faces, template.UserID)
		}
		return err
	}
	return nil
}

func (s *fileFaceStore) Find(_ context.Context, userID string) (models.FaceTemplate, error) {
	s.f.mu.RLock()
	defer s.f.mu.RUnlock()
	if t, ok := s.f.table.Faces[userID]; ok {
		return copyFaceTemplate(t), nil
	}
	return models.FaceTemplate{}, sentinel.ErrNotFound
}

func (s *fileFaceStore) List(_ context.Context) ([]models.FaceTemplate, error) {
	s.f.mu.RLock()
	defer s.f.mu.RUnlock()
	out := make([]models.FaceTemplate, 0, len(s.f.table.Faces))
	for _, t := range s.f.table.Faces {
		out = append(out, copyFaceTemplate(t))
	}
	return out, nil
}

func (s *fileFaceStore) Delete(_ context.Context, userID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	prev, ok := s.f.table.Faces[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.f.table.Faces, userID)
	if err := s.f.flushLocked(); err != nil {
		s.f.table.Faces[userID] = prev
		return err
	}
	return nil
}
