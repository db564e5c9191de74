package postgres

import (
	"context"

	"github.com/victornm/quizshare/internal/domain"
)

func (t *pgTx) InsertUpload(ctx context.Context, u domain.ImageUpload) error {
	const stmt = `
INSERT INTO image_uploads (upload_id, user_id, content_type, image, upload_time, processed, parsed_data, extraction_error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := t.tx.Exec(ctx, stmt, u.UploadID, u.UserID, u.ContentType, u.Image, u.UploadTime, u.Processed,
		jsonb(u.ParsedData), nullable(u.ExtractionError))
	return mapErr("insert upload", err)
}

func (t *pgTx) GetUpload(ctx context.Context, uploadID string) (domain.ImageUpload, error) {
	const stmt = `
SELECT upload_id, user_id, content_type, image, upload_time, processed, parsed_data, extraction_error
FROM image_uploads
WHERE upload_id = $1;`

	var (
		u       domain.ImageUpload
		parsed  *string
		failure *string
	)
	err := t.tx.QueryRow(ctx, stmt, uploadID).Scan(&u.UploadID, &u.UserID, &u.ContentType, &u.Image, &u.UploadTime,
		&u.Processed, &parsed, &failure)
	if err != nil {
		return domain.ImageUpload{}, mapErr("get upload", err)
	}

	if parsed != nil {
		u.ParsedData = []byte(*parsed)
	}
	u.ExtractionError = deref(failure)

	return u, nil
}

func (t *pgTx) UpdateUpload(ctx context.Context, u domain.ImageUpload) error {
	const stmt = `
UPDATE image_uploads
SET processed = $2, parsed_data = $3, extraction_error = $4
WHERE upload_id = $1;`

	return t.exec(ctx, "update upload", stmt, u.UploadID, u.Processed, jsonb(u.ParsedData), nullable(u.ExtractionError))
}

// jsonb passes raw JSON as text so the server parses it, and nil as NULL.
func jsonb(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}
