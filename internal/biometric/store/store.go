// Package store persists biometric templates. Implementations are swappable
// behind the TemplateStore/FaceStore interfaces: in-memory for tests, an
// atomic single-file store for kiosk deployments, PostgreSQL and Redis for
// shared installations.
//
// Stores return pkg/sentinel errors for infrastructure facts; services
// translate them into coded domain errors.
package store

import (
	"context"

	"umid/internal/biometric/models"
)

// TemplateStore is the durable fingerprint template table. Upsert replaces
// any existing row for the same user: one template per user per modality.
type TemplateStore interface {
	Upsert(ctx context.Context, template models.Template) error
	Find(ctx context.Context, userID string) (models.Template, error)
	List(ctx context.Context) ([]models.Template, error)
	Delete(ctx context.Context, userID string) error
}

// FaceStore is the durable face template table.
type FaceStore interface {
	Upsert(ctx context.Context, template models.FaceTemplate) error
	Find(ctx context.Context, userID string) (models.FaceTemplate, error)
	List(ctx context.Context) ([]models.FaceTemplate, error)
	Delete(ctx context.Context, userID string) error
}
