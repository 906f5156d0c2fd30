package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"account-api/internal/domain"
	"account-api/internal/transport/http/ez"
)

type AdminUserService interface {
	Search(ctx context.Context, f domain.ListFilter) ([]domain.User, int64, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
}

type AdminHandler struct {
	users AdminUserService
}

func NewAdminHandler(users AdminUserService) *AdminHandler { return &AdminHandler{users: users} }

// MountAdmin 挂在 /admin/v1 下，分组已要求 ADMIN 角色，这里再声明一次
func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)
	roles := []string{string(domain.RoleAdmin)}

	ez.RegisterAction(e, ez.Action[AdminListQuery, AdminListResponse]{
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  ez.BindQuery,
		Auth:    true,
		Roles:   roles,
		Handler: h.list,
	})
	ez.RegisterAction(e, ez.Action[SetRoleRequest, UserResponse]{
		Method:  http.MethodPut,
		Path:    "/users/:id/role",
		Binder:  ez.BindJSON,
		Auth:    true,
		Roles:   roles,
		Handler: h.setRole,
	})
}

func (h *AdminHandler) list(c *gin.Context, in *AdminListQuery) (AdminListResponse, error) {
	us, total, err := h.users.Search(c.Request.Context(), domain.ListFilter{Offset: in.Offset, Limit: in.Limit, Query: in.Q})
	if err != nil {
		return AdminListResponse{}, err
	}
	return AdminListResponse{Total: total, Items: toUserResponses(us)}, nil
}

func (h *AdminHandler) setRole(c *gin.Context, in *SetRoleRequest) (UserResponse, error) {
	u, err := h.users.SetRole(c.Request.Context(), c.Param("id"), domain.Role(in.Role))
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(u), nil
}
