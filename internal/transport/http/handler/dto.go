package handler

import (
	"time"

	"account-api/internal/domain"
)

type CreateUserRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,min=6,maxbytes=72"`
	FirstName *string `json:"firstName" binding:"omitempty,max=64"`
	LastName  *string `json:"lastName" binding:"omitempty,max=64"`
}

// UpdateUserRequest 字段均可选，缺省即不修改
type UpdateUserRequest struct {
	Email     *string `json:"email" binding:"omitempty,email"`
	Password  *string `json:"password" binding:"omitempty,min=6,maxbytes=72"`
	FirstName *string `json:"firstName" binding:"omitempty,max=64"`
	LastName  *string `json:"lastName" binding:"omitempty,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SetRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=USER ADMIN"`
}

type ListUsersQuery struct {
	Page int    `form:"page,default=1" binding:"min=0,max=1000000"`
	Size int    `form:"size,default=20" binding:"min=0"`
	Q    string `form:"q" binding:"max=100"`
}

type AdminListQuery struct {
	Offset int    `form:"offset,default=0" binding:"min=0,max=100000000"`
	Limit  int    `form:"limit,default=20" binding:"min=0"`
	Q      string `form:"q" binding:"max=100"`
}

// UserResponse 对外的用户视图，不含密码
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type AdminListResponse struct {
	Total int64          `json:"total"`
	Items []UserResponse `json:"items"`
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toUserResponses(us []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(us))
	for i := range us {
		out = append(out, toUserResponse(&us[i]))
	}
	return out
}
