package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"account-api/internal/core/cache"
	"account-api/internal/domain"
	"account-api/pkg/utils"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 1_000_000
	MaxOffset       = MaxPage * MaxPageSize
)

// pageSize 非正数取默认值，超过上限截断到上限
func pageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

type CreateUserInput struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
}

// UpdateUserInput nil 表示不修改
type UpdateUserInput struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
}

type Page struct {
	Users []domain.User
	Total int64
	Page  int
	Size  int
}

type UserService struct {
	repo       domain.UserRepository
	cache      *cache.Cache
	cacheTTL   time.Duration
	bcryptCost int
	log        *zap.Logger
}

type Option func(*UserService)

// WithCache 开启按 id 的读缓存（更新/删除时失效）
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(s *UserService) { s.cache, s.cacheTTL = c, ttl }
}

func WithBcryptCost(cost int) Option { return func(s *UserService) { s.bcryptCost = cost } }

func WithLogger(l *zap.Logger) Option { return func(s *UserService) { s.log = l } }

func NewUserService(repo domain.UserRepository, opts ...Option) *UserService {
	s := &UserService{repo: repo, bcryptCost: utils.DefaultCost, log: zap.NewNop(), cacheTTL: 5 * time.Minute}
	for _, o := range opts {
		o(s)
	}
	return s
}

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func notFound(id string) error {
	return domain.WithMsg(domain.ErrUserNotFound, fmt.Sprintf("User with ID %s not found", id))
}

func emailTaken() error { return domain.WithMsg(domain.ErrEmailTaken, "Email already in use") }

func hashPassword(pw string, cost int) (string, error) {
	hash, err := utils.HashPassword(pw, cost)
	switch {
	case errors.Is(err, utils.ErrPasswordTooLong):
		return "", domain.WithMsg(domain.ErrPasswordTooLong, fmt.Sprintf("Password must be at most %d bytes", utils.MaxPasswordBytes))
	case err != nil:
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func cacheKey(id string) string { return "user:" + id }

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	email := NormalizeEmail(in.Email)

	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, emailTaken()
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, err
	}

	hash, err := hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         domain.RoleUser,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		// 并发注册同一邮箱时由唯一索引兜底
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, emailTaken()
		}
		return nil, err
	}
	s.log.Info("user created", zap.String("user_id", u.ID))
	return u, nil
}

func (s *UserService) FindAll(ctx context.Context, page, size int, q string) (*Page, error) {
	page = min(max(page, 1), MaxPage)
	size = pageSize(size)
	users, total, err := s.repo.List(ctx, domain.ListFilter{
		Offset: (page - 1) * size,
		Limit:  size,
		Query:  q,
	})
	if err != nil {
		return nil, err
	}
	return &Page{Users: users, Total: total, Page: page, Size: size}, nil
}

// Search 管理端按 offset/limit 列表
func (s *UserService) Search(ctx context.Context, f domain.ListFilter) ([]domain.User, int64, error) {
	f.Offset = min(max(f.Offset, 0), MaxOffset)
	f.Limit = pageSize(f.Limit)
	f.Query = strings.TrimSpace(f.Query)
	return s.repo.List(ctx, f)
}

func (s *UserService) FindOne(ctx context.Context, id string) (*domain.User, error) {
	if s.cache == nil {
		return s.load(ctx, id)
	}
	return cache.GetOrLoadJSON(s.cache, ctx, cacheKey(id), s.cacheTTL, func(ctx context.Context) (*domain.User, error) {
		return s.load(ctx, id)
	})
}

// FindByEmail 返回完整记录（含密码哈希），仅供登录校验
func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.FindByEmail(ctx, NormalizeEmail(email))
}

func (s *UserService) load(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, notFound(id)
	}
	return u, err
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != u.Email {
			other, err := s.repo.FindByEmail(ctx, email)
			switch {
			case err == nil && other.ID != u.ID:
				return nil, emailTaken()
			case err != nil && !errors.Is(err, domain.ErrUserNotFound):
				return nil, err
			}
			u.Email = email
		}
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if in.FirstName != nil {
		u.FirstName = in.FirstName
	}
	if in.LastName != nil {
		u.LastName = in.LastName
	}

	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetRole 仅管理端使用
func (s *UserService) SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	u.Role = role
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user role changed", zap.String("user_id", id), zap.String("role", string(role)))
	return u, nil
}

func (s *UserService) save(ctx context.Context, u *domain.User) error {
	err := s.repo.Update(ctx, u)
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		return emailTaken()
	case errors.Is(err, domain.ErrUserNotFound):
		return notFound(u.ID)
	case err != nil:
		return err
	}
	s.invalidate(ctx, u.ID)
	return nil
}

func (s *UserService) Remove(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, notFound(id)
		}
		return nil, err
	}
	s.invalidate(ctx, id)
	s.log.Info("user deleted", zap.String("user_id", id))
	return u, nil
}

func (s *UserService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("user_id", id), zap.Error(err))
	}
}
