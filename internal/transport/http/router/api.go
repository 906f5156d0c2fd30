package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"account-api/internal/core/auth"
	"account-api/internal/core/server"
	"account-api/internal/transport/http/docs"
	"account-api/internal/transport/http/handler"
	mdw "account-api/internal/transport/http/middleware"
)

type Deps struct {
	Log      *zap.Logger
	JWT      *auth.JWTer
	Server   server.Options
	Health   *handler.HealthHandler
	Registry *Registry
	Users    mdw.UserLookup
}

// mountOps /health 与 /metrics，两个 engine 共用
func mountOps(r *gin.Engine, d Deps) {
	health := d.Health
	if health == nil {
		health = handler.NewHealthHandler(nil)
	}
	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// NewAPIEngine 用户端：/auth/login、/users 及文档
func NewAPIEngine(d Deps) *gin.Engine {
	r := server.NewRouter(d.Log, d.Server)
	mountOps(r, d)
	docs.Mount(r)

	public := r.Group("")
	// 鉴权分组（userId/role 由 AuthJWT 写入）
	authed := r.Group("", mdw.AuthJWT(d.JWT, ""))

	if d.Registry != nil {
		d.Registry.MountAllAPI(public, authed)
	}
	return r
}
