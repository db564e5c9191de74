package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizshare/internal/access"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/extraction"
)

const maxImageBytes = 10 << 20

func (a *API) uploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		abort(c, errors.Validation("image file is required"))
		return
	}
	if fh.Size > maxImageBytes {
		abort(c, errors.Validation("image too large: %d bytes", fh.Size))
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		abort(c, err)
		return
	}

	up, err := a.es.Upload(c.Request.Context(), extraction.UploadRequest{
		Viewer: viewer(c),
		Image:  data,
	})
	if err != nil {
		abort(c, err)
		return
	}

	res := Upload{
		ID:              up.UploadID,
		Processed:       up.Processed,
		ExtractionError: up.ExtractionError,
	}
	if len(up.ParsedData) > 0 {
		res.ParsedData = json.RawMessage(up.ParsedData)
	}

	c.JSON(http.StatusCreated, res)
}

type createQuizFromImageRequest struct {
	ImageID         string `json:"image_id" binding:"required"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	IsPublic        bool   `json:"is_public"`
}

type createQuizFromImageResponse struct {
	QuizID    string `json:"quiz_id"`
	ShareCode string `json:"share_code"`
	Quiz      Quiz   `json:"quiz"`
}

func (a *API) createQuizFromImage(c *gin.Context) {
	var req createQuizFromImageRequest
	if !bind(c, &req) {
		return
	}

	q, err := a.es.CreateQuiz(c.Request.Context(), extraction.CreateQuizRequest{
		Viewer:          viewer(c),
		UploadID:        req.ImageID,
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		IsPublic:        req.IsPublic,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, createQuizFromImageResponse{
		QuizID:    q.QuizID,
		ShareCode: q.ShareCode,
		Quiz:      toQuizDetail(*q, access.Access{Level: access.Owner}),
	})
}
