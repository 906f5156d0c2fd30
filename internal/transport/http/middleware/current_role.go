package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"account-api/internal/domain"
	"account-api/internal/transport/http/ez"
	resp "account-api/internal/transport/http/response"
)

type UserLookup interface {
	FindOne(ctx context.Context, id string) (*domain.User, error)
}

// RequireCurrentRole 以账户当前角色为准复核（降级、删除立即生效），须挂在 AuthJWT 之后
func RequireCurrentRole(users UserLookup, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.FindOne(c.Request.Context(), c.GetString(ez.CtxUserID))
		if errors.Is(err, domain.ErrUserNotFound) {
			resp.Abort(c, resp.CodeUnauthorized, "account no longer exists")
			return
		}
		if err != nil {
			ez.Fail(c, err)
			c.Abort()
			return
		}
		if string(u.Role) != role {
			resp.Abort(c, resp.CodeForbidden, "forbidden")
			return
		}
		c.Set(ez.CtxRole, string(u.Role))
		c.Next()
	}
}
