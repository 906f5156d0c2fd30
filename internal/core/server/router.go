package server

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"account-api/internal/core/config"
	"account-api/internal/core/logger"
	mdw "account-api/internal/transport/http/middleware"
	resp "account-api/internal/transport/http/response"
)

type Options struct {
	Name   string // otel service name
	Limits config.Limits
	CORS   config.CORS
}

// NewRouter 创建带公共中间件链的 engine：
// trace → request id → metrics → access log → recovery → cors → 限流/并发/body/超时
func NewRouter(l *zap.Logger, o Options) *gin.Engine {
	r := gin.New()
	r.Use(
		otelgin.Middleware(o.Name),
		mdw.RequestID(),
		mdw.Metrics(),
		mdw.AccessLog(l),
		ginzap.CustomRecoveryWithZap(l, true, func(c *gin.Context, _ any) {
			resp.Abort(c, resp.CodeServerError, "internal error")
		}),
		cors.New(corsConfig(o.CORS)),
	)
	if o.Limits.RPS > 0 {
		r.Use(mdw.RateLimitPerIP(rate.Limit(o.Limits.RPS), max(o.Limits.Burst, 1), 10*time.Minute))
	}
	if o.Limits.Concurrency > 0 {
		r.Use(mdw.ConcurrencyLimit(o.Limits.Concurrency))
	}
	if o.Limits.BodyBytes > 0 {
		r.Use(mdw.MaxBodyBytes(o.Limits.BodyBytes))
	}
	if o.Limits.TimeoutSec > 0 {
		r.Use(mdw.Timeout(time.Duration(o.Limits.TimeoutSec) * time.Second))
	}

	r.NoRoute(func(c *gin.Context) { resp.Abort(c, resp.CodeNotFound, "route not found") })
	return r
}

func corsConfig(c config.CORS) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", mdw.KeyRequestID},
		ExposeHeaders: []string{mdw.KeyRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowOrigins) == 0 || slices.Contains(c.AllowOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowOrigins
	}
	return cc
}

func StartHTTP(srv *http.Server, l *zap.Logger) error {
	l.Info("http starting", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}

// BuildServer net/http 自身的错误日志也写进 zap
func BuildServer(addr string, handler http.Handler, rt, wt, it time.Duration, l *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       rt,
		ReadHeaderTimeout: rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20, // 1MB
		ErrorLog:          logger.ToStdLogger(l, zapcore.WarnLevel),
	}
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }
