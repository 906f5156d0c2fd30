package router

import (
	"github.com/gin-gonic/gin"

	"account-api/internal/core/server"
	"account-api/internal/domain"
	mdw "account-api/internal/transport/http/middleware"
)

// NewAdminEngine 管理端 /admin/v1，整组要求 ADMIN 角色；配置了 Users 时按当前角色复核
func NewAdminEngine(d Deps) *gin.Engine {
	r := server.NewRouter(d.Log, d.Server)
	mountOps(r, d)

	guards := []gin.HandlerFunc{mdw.AuthJWT(d.JWT, string(domain.RoleAdmin))}
	if d.Users != nil {
		guards = append(guards, mdw.RequireCurrentRole(d.Users, string(domain.RoleAdmin)))
	}
	admin := r.Group("/admin/v1", guards...)
	if d.Registry != nil {
		d.Registry.MountAllAdmin(admin)
	}
	return r
}
