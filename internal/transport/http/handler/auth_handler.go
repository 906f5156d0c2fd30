package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"account-api/internal/service"
	"account-api/internal/transport/http/ez"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

type AuthHandler struct {
	auth AuthService
}

func NewAuthHandler(auth AuthService) *AuthHandler { return &AuthHandler{auth: auth} }

func (h *AuthHandler) Priority() int { return 10 }

func (h *AuthHandler) MountAPI(public, _ *gin.RouterGroup) {
	ez.RegisterAction(ez.New(public), ez.Action[LoginRequest, AuthResponse]{
		Method:  http.MethodPost,
		Path:    "/auth/login",
		Binder:  ez.BindJSON,
		Handler: h.login,
	})
}

func (h *AuthHandler) login(c *gin.Context, in *LoginRequest) (AuthResponse, error) {
	res, err := h.auth.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{AccessToken: res.AccessToken, User: toUserResponse(res.User)}, nil
}
