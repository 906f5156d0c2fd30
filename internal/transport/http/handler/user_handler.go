package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"account-api/internal/domain"
	"account-api/internal/service"
	"account-api/internal/transport/http/ez"
)

type UserService interface {
	Create(ctx context.Context, in service.CreateUserInput) (*domain.User, error)
	FindAll(ctx context.Context, page, size int, q string) (*service.Page, error)
	FindOne(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, in service.UpdateUserInput) (*domain.User, error)
	Remove(ctx context.Context, id string) (*domain.User, error)
}

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler { return &UserHandler{users: users} }

func (h *UserHandler) Priority() int { return 20 }

// MountAPI 注册 /users；除注册外都需要登录
func (h *UserHandler) MountAPI(public, authed *gin.RouterGroup) {
	pub := ez.New(public)
	sec := ez.New(authed)

	ez.RegisterAction(pub, ez.Action[CreateUserRequest, UserResponse]{
		Method:  http.MethodPost,
		Path:    "/users",
		Binder:  ez.BindJSON,
		Status:  http.StatusCreated,
		Handler: h.create,
	})
	ez.RegisterAction(sec, ez.Action[ListUsersQuery, ListUsersResponse]{
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  ez.BindQuery,
		Auth:    true,
		Handler: h.list,
	})
	ez.RegisterAction(sec, ez.Action[struct{}, UserResponse]{
		Method:  http.MethodGet,
		Path:    "/users/:id",
		Binder:  ez.BindNone,
		Auth:    true,
		Handler: h.get,
	})
	ez.RegisterAction(sec, ez.Action[UpdateUserRequest, UserResponse]{
		Method:  http.MethodPut,
		Path:    "/users/:id",
		Binder:  ez.BindJSON,
		Auth:    true,
		Handler: h.update,
	})
	ez.RegisterAction(sec, ez.Action[struct{}, UserResponse]{
		Method:  http.MethodDelete,
		Path:    "/users/:id",
		Binder:  ez.BindNone,
		Auth:    true,
		Handler: h.remove,
	})
}

func (h *UserHandler) create(c *gin.Context, in *CreateUserRequest) (UserResponse, error) {
	u, err := h.users.Create(c.Request.Context(), service.CreateUserInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(u), nil
}

func (h *UserHandler) list(c *gin.Context, in *ListUsersQuery) (ListUsersResponse, error) {
	p, err := h.users.FindAll(c.Request.Context(), in.Page, in.Size, in.Q)
	if err != nil {
		return ListUsersResponse{}, err
	}
	return ListUsersResponse{Users: toUserResponses(p.Users), Total: p.Total, Page: p.Page, Size: p.Size}, nil
}

func (h *UserHandler) get(c *gin.Context, _ *struct{}) (UserResponse, error) {
	u, err := h.users.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(u), nil
}

func (h *UserHandler) update(c *gin.Context, in *UpdateUserRequest) (UserResponse, error) {
	u, err := h.users.Update(c.Request.Context(), c.Param("id"), service.UpdateUserInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(u), nil
}

func (h *UserHandler) remove(c *gin.Context, _ *struct{}) (UserResponse, error) {
	u, err := h.users.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(u), nil
}
