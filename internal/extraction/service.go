// Package extraction stores uploaded images, runs them through an external
// question extractor and turns a successful extraction into a quiz.
package extraction

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizshare/internal/catalog"
	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/store"
)

const (
	defaultTimeout = 60 * time.Second
	defaultTitle   = "Untitled Quiz"
)

// Extractor reads quiz questions out of a JPEG image and returns the raw JSON
// document it produced.
type Extractor interface {
	Extract(ctx context.Context, jpeg []byte) ([]byte, error)
}

type Config struct {
	Store   store.Store
	Catalog *catalog.Service
	// Extractor may be nil, in which case every upload is left unprocessed.
	Extractor Extractor
	Timeout   time.Duration
	Now       func() time.Time
}

type Service struct {
	store     store.Store
	catalog   *catalog.Service
	extractor Extractor
	timeout   time.Duration
	now       func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store:     c.Store,
		catalog:   c.Catalog,
		extractor: c.Extractor,
		timeout:   c.Timeout,
		now:       c.Now,
	}

	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type UploadRequest struct {
	Viewer domain.Viewer
	Image  []byte
}

// Upload stores the image and runs the extractor on it. An extraction failure is
// recorded on the upload, which then stays unprocessed; the upload itself succeeds.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*domain.ImageUpload, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	img, err := Normalize(req.Image)
	if stderrors.Is(err, ErrUnsupportedImage) {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%v", err), errors.WithCause(err))
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate upload ID: %w", err)
	}

	up := domain.ImageUpload{
		UploadID:    id.String(),
		UserID:      req.Viewer.UserID,
		ContentType: "image/jpeg",
		Image:       img,
		UploadTime:  s.now(),
	}
	if err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.InsertUpload(ctx, up)
	}); err != nil {
		return nil, err
	}

	raw, xerr := s.extract(ctx, img)
	if xerr != nil {
		slog.ErrorContext(ctx, "extraction: extract failed", "upload", up.UploadID, "error", xerr)
		up.ExtractionError = xerr.Error()
	} else {
		up.Processed = true
		up.ParsedData = raw
	}

	if err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.UpdateUpload(ctx, up)
	}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "extraction: image uploaded",
		"upload", up.UploadID,
		"processed", up.Processed,
	)

	return &up, nil
}

func (s *Service) extract(ctx context.Context, img []byte) ([]byte, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("extraction is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.extractor.Extract(ctx, img)
}

type GetUploadRequest struct {
	Viewer   domain.Viewer
	UploadID string
}

// GetUpload returns the viewer's own upload. Uploads of other users are reported
// as not found.
func (s *Service) GetUpload(ctx context.Context, req GetUploadRequest) (*domain.ImageUpload, error) {
	var up domain.ImageUpload
	err := s.store.View(ctx, func(tx store.Tx) (err error) {
		up, err = tx.GetUpload(ctx, req.UploadID)
		return err
	})
	if stderrors.Is(err, store.ErrNotFound) || (err == nil && (req.Viewer.IsAnonymous() || up.UserID != req.Viewer.UserID)) {
		return nil, errors.NotFound("upload not found: upload=%s", req.UploadID)
	}
	if err != nil {
		return nil, err
	}

	return &up, nil
}

type CreateQuizRequest struct {
	Viewer          domain.Viewer
	UploadID        string
	Title           string
	DurationMinutes int
	IsPublic        bool
}

// CreateQuiz builds a quiz from a processed upload.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	if req.Viewer.IsAnonymous() {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authentication required"))
	}

	up, err := s.GetUpload(ctx, GetUploadRequest{Viewer: req.Viewer, UploadID: req.UploadID})
	if err != nil {
		return nil, err
	}
	if !up.Processed || len(up.ParsedData) == 0 {
		return nil, errors.State("image has not been processed: upload=%s", up.UploadID)
	}

	var e domain.Extraction
	if err := json.Unmarshal(up.ParsedData, &e); err != nil {
		return nil, errors.Validation("malformed extraction: %v", err)
	}

	if req.Title == "" {
		req.Title = defaultTitle
	}

	return s.catalog.BuildQuizFromExtraction(ctx, catalog.BuildQuizRequest{
		Viewer:          req.Viewer,
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		IsPublic:        req.IsPublic,
		Extraction:      e,
	})
}
