package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"account-api/internal/core/auth"
	"account-api/internal/transport/http/ez"
	resp "account-api/internal/transport/http/response"
)

// AuthJWT 校验 Bearer token；requireRole 非空时还要求角色匹配
func AuthJWT(j *auth.JWTer, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if len(ah) < 7 || !strings.EqualFold(ah[:7], "Bearer ") {
			resp.Abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		claims, err := j.Parse(strings.TrimSpace(ah[7:]))
		if err != nil {
			resp.Abort(c, resp.CodeUnauthorized, "invalid token")
			return
		}
		if requireRole != "" && claims.Role != requireRole {
			resp.Abort(c, resp.CodeForbidden, "forbidden")
			return
		}
		c.Set(ez.CtxClaims, claims)
		c.Set(ez.CtxUserID, claims.UID)
		c.Set(ez.CtxRole, claims.Role)
		c.Next()
	}
}
