package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizshare/internal/user"
)

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password2"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

func (a *API) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	u, err := a.us.Register(c.Request.Context(), user.RegisterRequest{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUser(u))
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string    `json:"access"`
	TokenType   string    `json:"token_type"`
	ExpireTime  time.Time `json:"expires_at"`
}

func (a *API) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	tok, err := a.us.Login(c.Request.Context(), user.LoginRequest{
		Identifier: req.Username,
		Password:   req.Password,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   "Bearer",
		ExpireTime:  tok.ExpireTime,
	})
}

func (a *API) getProfile(c *gin.Context) {
	u, err := a.us.GetProfile(c.Request.Context(), user.GetProfileRequest{Viewer: viewer(c)})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toUser(u))
}

type updateProfileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (a *API) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bind(c, &req) {
		return
	}

	u, err := a.us.UpdateProfile(c.Request.Context(), user.UpdateProfileRequest{
		Viewer:    viewer(c),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, toUser(u))
}
