package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizshare/internal/session"
)

type startSessionRequest struct {
	QuizID string `json:"quiz_id" binding:"required"`
}

type startSessionResponse struct {
	Session
	Resumed bool `json:"resumed"`
}

// startSession resumes the viewer's open attempt on the quiz or starts a new one.
func (a *API) startSession(c *gin.Context) {
	var req startSessionRequest
	if !bind(c, &req) {
		return
	}

	ss, resumed, err := a.ss.ResumeOrStart(c.Request.Context(), session.StartRequest{
		Viewer: viewer(c),
		QuizID: req.QuizID,
	})
	if err != nil {
		abort(c, err)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}

	c.JSON(status, startSessionResponse{Session: toSession(*ss), Resumed: resumed})
}

func (a *API) listSessions(c *gin.Context) {
	ss, err := a.ss.ListSessions(c.Request.Context(), session.ListSessionsRequest{Viewer: viewer(c)})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessions(ss))
}

func (a *API) getSession(c *gin.Context) {
	d, err := a.ss.GetSession(c.Request.Context(), session.GetSessionRequest{
		Viewer:    viewer(c),
		SessionID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionDetail(d))
}

type submitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	ChoiceID   string `json:"choice_id" binding:"required"`
}

func (a *API) submitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if !bind(c, &req) {
		return
	}

	ans, err := a.ss.SubmitAnswer(c.Request.Context(), session.SubmitAnswerRequest{
		Viewer:     viewer(c),
		SessionID:  c.Param("id"),
		QuestionID: req.QuestionID,
		ChoiceID:   req.ChoiceID,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toAnswer(*ans, nil))
}

func (a *API) completeSession(c *gin.Context) {
	ctx := c.Request.Context()

	ss, err := a.ss.Complete(ctx, session.CompleteRequest{
		Viewer:    viewer(c),
		SessionID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	res, err := a.ss.GetResult(ctx, session.GetSessionRequest{
		Viewer:    viewer(c),
		SessionID: ss.SessionID,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toResult(res))
}

func (a *API) getResult(c *gin.Context) {
	res, err := a.ss.GetResult(c.Request.Context(), session.GetSessionRequest{
		Viewer:    viewer(c),
		SessionID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toResult(res))
}
