// Package app 组装两个进程共用的依赖：DB、缓存、JWT、服务与路由参数
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"account-api/internal/core/auth"
	"account-api/internal/core/cache"
	"account-api/internal/core/config"
	"account-api/internal/core/database"
	"account-api/internal/core/server"
	"account-api/internal/feature/user"
	"account-api/internal/repo"
	"account-api/internal/service"
	"account-api/internal/transport/http/handler"
	"account-api/internal/transport/http/router"
)

type App struct {
	Cfg   *config.Config
	Log   *zap.Logger
	DB    *gorm.DB
	Cache *cache.Cache // 未配置 redis 时为 nil
	JWT   *auth.JWTer
	Users *service.UserService
	Auth  *service.AuthService

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: l}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l.Named("gorm"),
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error { return database.Close(db) })
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&user.UserModel{}); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}

	opts := []service.Option{
		service.WithBcryptCost(cfg.Security.BcryptCost),
		service.WithLogger(l.Named("users")),
	}
	if cfg.Redis.Enabled() {
		if c := a.openCache(ctx); c != nil {
			opts = append(opts, service.WithCache(c, time.Duration(cfg.Redis.TTLSec)*time.Second))
		}
	}

	a.JWT = &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL(),
	}
	a.Users = service.NewUserService(repo.NewUserRepo(db), opts...)
	a.Auth = service.NewAuthService(a.Users, a.JWT, l.Named("auth"))
	return a, nil
}

// openCache redis 不可用时降级为直连 DB
func (a *App) openCache(ctx context.Context) *cache.Cache {
	r := a.Cfg.Redis
	c := cache.New(r.Addr, r.Password, r.DB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		a.Log.Warn("redis unavailable, cache disabled", zap.String("addr", r.Addr), zap.Error(err))
		_ = c.Close()
		return nil
	}
	a.Cache = c
	a.closers = append(a.closers, c.Close)
	a.Log.Info("redis connected", zap.String("addr", r.Addr))
	return c
}

func (a *App) checks() map[string]handler.Check {
	m := map[string]handler.Check{
		"db": func(ctx context.Context) error { return database.Ping(ctx, a.DB) },
	}
	if a.Cache != nil {
		m["redis"] = a.Cache.Ping
	}
	return m
}

// Deps 路由依赖；mods 为要挂载的 handler
func (a *App) Deps(mods ...any) router.Deps {
	return router.Deps{
		Log: a.Log,
		JWT: a.JWT,
		Server: server.Options{
			Name:   a.Cfg.App.Name,
			Limits: a.Cfg.Limits,
			CORS:   a.Cfg.CORS,
		},
		Health:   handler.NewHealthHandler(a.checks()),
		Registry: router.NewRegistry(mods...),
		Users:    a.Users,
	}
}

func (a *App) APIHandlers() []any {
	return []any{handler.NewAuthHandler(a.Auth), handler.NewUserHandler(a.Users)}
}

func (a *App) AdminHandlers() []any {
	return []any{handler.NewAdminHandler(a.Users)}
}

// Close 逆序关闭
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
