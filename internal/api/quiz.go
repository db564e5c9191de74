package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizshare/internal/catalog"
)

type createQuizRequest struct {
	Title                  string `json:"title"`
	Description            string `json:"description"`
	DurationMinutes        int    `json:"duration_minutes"`
	IsPublic               bool   `json:"is_public"`
	AllowAnonymousAttempts bool   `json:"allow_anonymous_attempts"`
}

func (a *API) createQuiz(c *gin.Context) {
	var req createQuizRequest
	if !bind(c, &req) {
		return
	}

	q, err := a.cs.CreateQuiz(c.Request.Context(), catalog.CreateQuizRequest{
		Viewer:                 viewer(c),
		Title:                  req.Title,
		Description:            req.Description,
		DurationMinutes:        req.DurationMinutes,
		IsPublic:               req.IsPublic,
		AllowAnonymousAttempts: req.AllowAnonymousAttempts,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toQuiz(*q))
}

func (a *API) listQuizzes(c *gin.Context) {
	qs, err := a.cs.ListQuizzes(c.Request.Context(), catalog.ListQuizzesRequest{Viewer: viewer(c)})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuizzes(qs))
}

func (a *API) listSharedWithMe(c *gin.Context) {
	qs, err := a.cs.ListSharedWithMe(c.Request.Context(), catalog.ListQuizzesRequest{Viewer: viewer(c)})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuizzes(qs))
}

func (a *API) getQuiz(c *gin.Context) {
	d, err := a.cs.GetQuiz(c.Request.Context(), catalog.GetQuizRequest{
		Viewer: viewer(c),
		QuizID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuizDetail(d.Quiz, d.Access))
}

type updateQuizRequest struct {
	Title                  *string `json:"title"`
	Description            *string `json:"description"`
	DurationMinutes        *int    `json:"duration_minutes"`
	IsPublic               *bool   `json:"is_public"`
	AllowAnonymousAttempts *bool   `json:"allow_anonymous_attempts"`
}

func (a *API) updateQuiz(c *gin.Context) {
	var req updateQuizRequest
	if !bind(c, &req) {
		return
	}

	q, err := a.cs.UpdateQuiz(c.Request.Context(), catalog.UpdateQuizRequest{
		Viewer:                 viewer(c),
		QuizID:                 c.Param("id"),
		Title:                  req.Title,
		Description:            req.Description,
		DurationMinutes:        req.DurationMinutes,
		IsPublic:               req.IsPublic,
		AllowAnonymousAttempts: req.AllowAnonymousAttempts,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuiz(*q))
}

func (a *API) deleteQuiz(c *gin.Context) {
	err := a.cs.DeleteQuiz(c.Request.Context(), catalog.DeleteQuizRequest{
		Viewer: viewer(c),
		QuizID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	noContent(c)
}

func (a *API) listQuestions(c *gin.Context) {
	qs, acc, err := a.cs.ListQuestions(c.Request.Context(), catalog.ListQuestionsRequest{
		Viewer: viewer(c),
		QuizID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuestions(qs, acc.CanSeeAnswers()))
}

type questionRequest struct {
	Text  *string `json:"text"`
	Order *int    `json:"order"`
}

func (a *API) createQuestion(c *gin.Context) {
	var req questionRequest
	if !bind(c, &req) {
		return
	}

	q, err := a.cs.CreateQuestion(c.Request.Context(), catalog.CreateQuestionRequest{
		Viewer: viewer(c),
		QuizID: c.Param("id"),
		Text:   deref(req.Text),
		Order:  deref(req.Order),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toQuestion(*q, true))
}

func (a *API) updateQuestion(c *gin.Context) {
	var req questionRequest
	if !bind(c, &req) {
		return
	}

	q, err := a.cs.UpdateQuestion(c.Request.Context(), catalog.UpdateQuestionRequest{
		Viewer:     viewer(c),
		QuizID:     c.Param("id"),
		QuestionID: c.Param("qid"),
		Text:       req.Text,
		Order:      req.Order,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuestion(*q, true))
}

func (a *API) deleteQuestion(c *gin.Context) {
	err := a.cs.DeleteQuestion(c.Request.Context(), catalog.DeleteQuestionRequest{
		Viewer:     viewer(c),
		QuizID:     c.Param("id"),
		QuestionID: c.Param("qid"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	noContent(c)
}

func (a *API) listChoices(c *gin.Context) {
	cs, acc, err := a.cs.ListChoices(c.Request.Context(), catalog.ListChoicesRequest{
		Viewer:     viewer(c),
		QuestionID: c.Param("qid"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toChoices(cs, acc.CanSeeAnswers()))
}

type choiceRequest struct {
	Text      *string `json:"text"`
	IsCorrect *bool   `json:"is_correct"`
	Order     *int    `json:"order"`
}

func (a *API) createChoice(c *gin.Context) {
	var req choiceRequest
	if !bind(c, &req) {
		return
	}

	ch, err := a.cs.CreateChoice(c.Request.Context(), catalog.CreateChoiceRequest{
		Viewer:     viewer(c),
		QuestionID: c.Param("qid"),
		Text:       deref(req.Text),
		IsCorrect:  deref(req.IsCorrect),
		Order:      deref(req.Order),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toChoice(*ch, true))
}

func (a *API) updateChoice(c *gin.Context) {
	var req choiceRequest
	if !bind(c, &req) {
		return
	}

	ch, err := a.cs.UpdateChoice(c.Request.Context(), catalog.UpdateChoiceRequest{
		Viewer:     viewer(c),
		QuestionID: c.Param("qid"),
		ChoiceID:   c.Param("cid"),
		Text:       req.Text,
		IsCorrect:  req.IsCorrect,
		Order:      req.Order,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toChoice(*ch, true))
}

func (a *API) deleteChoice(c *gin.Context) {
	err := a.cs.DeleteChoice(c.Request.Context(), catalog.DeleteChoiceRequest{
		Viewer:     viewer(c),
		QuestionID: c.Param("qid"),
		ChoiceID:   c.Param("cid"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	noContent(c)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
