package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"account-api/internal/domain"
	"account-api/pkg/utils"
)

type TokenIssuer interface {
	Issue(uid, email, role string) (string, error)
}

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type LoginResult struct {
	AccessToken string
	User        *domain.User
}

type AuthService struct {
	users  UserFinder
	tokens TokenIssuer
	log    *zap.Logger
}

func NewAuthService(users UserFinder, tokens TokenIssuer, l *zap.Logger) *AuthService {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthService{users: users, tokens: tokens, log: l}
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// 邮箱不存在时也做一次 bcrypt 比对，避免通过耗时差异探测账号
func burnCompare(pw string) {
	dummyOnce.Do(func() { dummyHash, _ = utils.HashPassword("not-a-real-password", utils.DefaultCost) })
	_ = utils.CheckPassword(pw, dummyHash)
}

func invalidCredentials() error {
	return domain.WithMsg(domain.ErrInvalidCredentials, "Invalid credentials")
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		burnCompare(password)
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		s.log.Info("login rejected", zap.String("user_id", u.ID))
		return nil, invalidCredentials()
	}

	tok, err := s.tokens.Issue(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if tok == "" {
		return nil, errors.New("issue token: empty token")
	}
	return &LoginResult{AccessToken: tok, User: u}, nil
}
