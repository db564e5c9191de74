package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizshare/internal/catalog"
	"github.com/victornm/quizshare/internal/domain"
	"github.com/victornm/quizshare/internal/errors"
	"github.com/victornm/quizshare/internal/session"
	"github.com/victornm/quizshare/internal/sharing"
)

type shareRequest struct {
	// SharedWith is the recipient's username, or email when it contains "@".
	SharedWith string `json:"shared_with" binding:"required"`
	Permission string `json:"permission"`
}

func (a *API) share(c *gin.Context) {
	var req shareRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()

	u, err := a.us.FindUser(ctx, req.SharedWith)
	if errors.Is(err, errors.CodeNotFound) {
		abort(c, errors.Validation("unknown recipient: %s", req.SharedWith))
		return
	}
	if err != nil {
		abort(c, err)
		return
	}

	s, err := a.shs.CreateOrUpdateShare(ctx, sharing.ShareRequest{
		Granter:    viewer(c),
		QuizID:     c.Param("id"),
		GranteeID:  u.UserID,
		Permission: domain.Permission(req.Permission),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toShare(*s))
}

func (a *API) listQuizShares(c *gin.Context) {
	ss, err := a.shs.ListForQuiz(c.Request.Context(), sharing.ListForQuizRequest{
		Viewer: viewer(c),
		QuizID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toShares(ss))
}

func (a *API) listSentShares(c *gin.Context) {
	ss, err := a.shs.ListSent(c.Request.Context(), sharing.ListRequest{Viewer: viewer(c)})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toShares(ss))
}

func (a *API) listReceivedShares(c *gin.Context) {
	ss, err := a.shs.ListReceived(c.Request.Context(), sharing.ListRequest{Viewer: viewer(c)})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toShares(ss))
}

type qrCodeResponse struct {
	QRCode    string `json:"qr_code"`
	ShareURL  string `json:"share_url"`
	ShareCode string `json:"share_code"`
}

func (a *API) qrCode(c *gin.Context) {
	d, err := a.cs.GetQuiz(c.Request.Context(), catalog.GetQuizRequest{
		Viewer: viewer(c),
		QuizID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	link, png, err := a.sl.DataURL(d.Quiz.ShareCode)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, qrCodeResponse{
		QRCode:    png,
		ShareURL:  link,
		ShareCode: d.Quiz.ShareCode,
	})
}

type joinResponse struct {
	Quiz    Quiz     `json:"quiz"`
	Session *Session `json:"session,omitempty"`
	Resumed bool     `json:"resumed,omitempty"`
}

// join resolves a share code. With auto_start it also resumes or starts an attempt.
func (a *API) join(c *gin.Context) {
	ctx := c.Request.Context()
	v := viewer(c)

	d, err := a.cs.GetQuizByShareCode(ctx, catalog.GetQuizByShareCodeRequest{
		Viewer: v,
		Code:   c.Param("code"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	res := joinResponse{Quiz: toQuizDetail(d.Quiz, d.Access)}

	if start, _ := strconv.ParseBool(c.Query("auto_start")); start {
		ss, resumed, err := a.ss.ResumeOrStart(ctx, session.StartRequest{Viewer: v, QuizID: d.Quiz.QuizID})
		if err != nil {
			abort(c, err)
			return
		}

		s := toSession(*ss)
		res.Session, res.Resumed = &s, resumed
	}

	c.JSON(http.StatusOK, res)
}
