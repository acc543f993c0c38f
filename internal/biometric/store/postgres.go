package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"umid/internal/biometric/models"
	"umid/pkg/sentinel"
)

// PostgresTemplateStore persists fingerprint templates in PostgreSQL. The
// store is pure I/O; replacement semantics live in the upsert statement and
// all domain decisions stay in the service.
type PostgresTemplateStore struct {
	db *sql.DB
}

func NewPostgresTemplateStore(db *sql.DB) *PostgresTemplateStore {
	return &PostgresTemplateStore{db: db}
}

func (s *PostgresTemplateStore) Upsert(ctx context.Context, t models.Template) error {
	query := `
		INSERT INTO fingerprint_templates
			(user_id, signature, characteristics, quality, scanner_slot, registered_at, last_used_at, usage_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			signature = EXCLUDED.signature,
			characteristics = EXCLUDED.characteristics,
			quality = EXCLUDED.quality,
			scanner_slot = EXCLUDED.scanner_slot,
			registered_at = EXCLUDED.registered_at,
			last_used_at = EXCLUDED.last_used_at,
			usage_count = EXCLUDED.usage_count
	`
	_, err := s.db.ExecContext(ctx, query,
		t.UserID,
		t.Signature,
		encodeCharacteristics(t.Characteristics),
		t.Quality,
		t.ScannerSlot,
		t.RegisteredAt,
		nullableTime(t.LastUsedAt),
		t.UsageCount,
	)
	if err != nil {
		return fmt.Errorf("upsert fingerprint template: %w", err)
	}
	return nil
}

func (s *PostgresTemplateStore) Find(ctx context.Context, userID string) (models.Template, error) {
	query := `
		SELECT user_id, signature, characteristics, quality, scanner_slot, registered_at, last_used_at, usage_count
		FROM fingerprint_templates
		WHERE user_id = $1
	`
	t, err := scanTemplate(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Template{}, sentinel.ErrNotFound
		}
		return models.Template{}, fmt.Errorf("find fingerprint template: %w", err)
	}
	return t, nil
}

func (s *PostgresTemplateStore) List(ctx context.Context) ([]models.Template, error) {
	query := `
		SELECT user_id, signature, characteristics, quality, scanner_slot, registered_at, last_used_at, usage_count
		FROM fingerprint_templates
		ORDER BY registered_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list fingerprint templates: %w", err)
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fingerprint template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fingerprint templates: %w", err)
	}
	return out, nil
}

func (s *PostgresTemplateStore) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fingerprint_templates WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete fingerprint template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fingerprint template: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (models.Template, error) {
	var (
		t        models.Template
		rawChars []byte
		lastUsed sql.NullTime
	)
	err := row.Scan(
		&t.UserID,
		&t.Signature,
		&rawChars,
		&t.Quality,
		&t.ScannerSlot,
		&t.RegisteredAt,
		&lastUsed,
		&t.UsageCount,
	)
	if err != nil {
		return models.Template{}, err
	}
	t.Characteristics = decodeCharacteristics(rawChars)
	if lastUsed.Valid {
		t.LastUsedAt = lastUsed.Time
	}
	return t, nil
}

// PostgresFaceStore persists face templates in PostgreSQL.
type PostgresFaceStore struct {
	db *sql.DB
}

func NewPostgresFaceStore(db *sql.DB) *PostgresFaceStore {
	return &PostgresFaceStore{db: db}
}

func (s *PostgresFaceStore) Upsert(ctx context.Context, t models.FaceTemplate) error {
	query := `
		INSERT INTO face_templates (user_id, encoding, registered_at, last_used_at, usage_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			encoding = EXCLUDED.encoding,
			registered_at = EXCLUDED.registered_at,
			last_used_at = EXCLUDED.last_used_at,
			usage_count = EXCLUDED.usage_count
	`
	_, err := s.db.ExecContext(ctx, query,
		t.UserID,
		encodeEncoding(t.Encoding),
		t.RegisteredAt,
		nullableTime(t.LastUsedAt),
		t.UsageCount,
	)
	if err != nil {
		return fmt.Errorf("upsert face template: %w", err)
	}
	return nil
}

func (s *PostgresFaceStore) Find(ctx context.Context, userID string) (models.FaceTemplate, error) {
	query := `
		SELECT user_id, encoding, registered_at, last_used_at, usage_count
		FROM face_templates
		WHERE user_id = $1
	`
	t, err := scanFaceTemplate(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FaceTemplate{}, sentinel.ErrNotFound
		}
		return models.FaceTemplate{}, fmt.Errorf("find face template: %w", err)
	}
	return t, nil
}

func (s *PostgresFaceStore) List(ctx context.Context) ([]models.FaceTemplate, error) {
	query := `
		SELECT user_id, encoding, registered_at, last_used_at, usage_count
		FROM face_templates
		ORDER BY registered_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list face templates: %w", err)
	}
	defer rows.Close()

	var out []models.FaceTemplate
	for rows.Next() {
		t, err := scanFaceTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list face templates: %w", err)
	}
	return out, nil
}

func (s *PostgresFaceStore) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM face_templates WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete face template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete face template: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanFaceTemplate(row rowScanner) (models.FaceTemplate, error) {
	var (
		t        models.FaceTemplate
		rawEnc   []byte
		lastUsed sql.NullTime
	)
	err := row.Scan(&t.UserID, &rawEnc, &t.RegisteredAt, &lastUsed, &t.UsageCount)
	if err != nil {
		return models.FaceTemplate{}, err
	}
	t.Encoding = decodeEncoding(rawEnc)
	if lastUsed.Valid {
		t.LastUsedAt = lastUsed.Time
	}
	return t, nil
}

// Characteristic vectors and encodings travel as little-endian fixed-width
// bytes. The layout matches the signature derivation input so a stored row
// can always be re-verified against its digest.

func encodeCharacteristics(chars []int32) []byte {
	buf := make([]byte, 4*len(chars))
	for i, c := range chars {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(c))
	}
	return buf
}

func decodeCharacteristics(raw []byte) []int32 {
	chars := make([]int32, len(raw)/4)
	for i := range chars {
		chars[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return chars
}

func encodeEncoding(enc []float64) []byte {
	buf := make([]byte, 8*len(enc))
	for i, v := range enc {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeEncoding(raw []byte) []float64 {
	enc := make([]float64, len(raw)/8)
	for i := range enc {
		enc[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return enc
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
