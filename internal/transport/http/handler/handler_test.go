package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-api/internal/domain"
	"account-api/internal/service"
	"account-api/internal/transport/http/ez"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUsers 只实现用到的方法，其余返回 err
type fakeUsers struct {
	err     error
	lastPut service.UpdateUserInput
}

func (f *fakeUsers) Create(_ context.Context, in service.CreateUserInput) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: "u-1", Email: in.Email, PasswordHash: "$2a$10$x", Role: domain.RoleUser}, nil
}

func (f *fakeUsers) FindAll(context.Context, int, int, string) (*service.Page, error) {
	return nil, f.err
}

func (f *fakeUsers) FindOne(context.Context, string) (*domain.User, error) { return nil, f.err }

func (f *fakeUsers) Update(_ context.Context, id string, in service.UpdateUserInput) (*domain.User, error) {
	f.lastPut = in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{ID: id, Email: "e@example.com", Role: domain.RoleUser}, nil
}

func (f *fakeUsers) Remove(context.Context, string) (*domain.User, error) { return nil, f.err }

func mount(users UserService) *gin.Engine {
	r := gin.New()
	setUID := func(c *gin.Context) { c.Set(ez.CtxUserID, "caller") }
	NewUserHandler(users).MountAPI(r.Group(""), r.Group("", setUID))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStoreFailureIsOpaque500(t *testing.T) {
	r := mount(&fakeUsers{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/users", `{"email":"a@example.com","password":"secret1"}`},
		{http.MethodGet, "/users", ""},
		{http.MethodGet, "/users/x", ""},
		{http.MethodDelete, "/users/x", ""},
	} {
		w := do(r, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, tc.path)
		assert.NotContains(t, w.Body.String(), "10.0.0.5", tc.path)
	}
}

func TestUpdatePassesOnlyProvidedFields(t *testing.T) {
	f := &fakeUsers{}
	r := mount(f)

	w := do(r, http.MethodPut, "/users/u-9", `{"firstName":"Grace"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, f.lastPut.FirstName)
	assert.Equal(t, "Grace", *f.lastPut.FirstName)
	assert.Nil(t, f.lastPut.Email)
	assert.Nil(t, f.lastPut.Password)
	assert.Nil(t, f.lastPut.LastName)

	w = do(r, http.MethodPut, "/users/u-9", `{"password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserResponseOmitsPassword(t *testing.T) {
	fn := "Ada"
	b, err := json.Marshal(toUserResponse(&domain.User{
		ID: "u-1", Email: "a@example.com", PasswordHash: "$2a$10$secret", FirstName: &fn,
		Role: domain.RoleAdmin, CreatedAt: time.Unix(0, 0).UTC(),
	}))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), "$2a$")
	assert.Contains(t, string(b), `"role":"ADMIN"`)
	assert.Contains(t, string(b), `"lastName":null`)
}

type fakeAuth struct{ err error }

func (f fakeAuth) Login(_ context.Context, email, _ string) (*service.LoginResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.LoginResult{AccessToken: "tok", User: &domain.User{ID: "u-1", Email: email, PasswordHash: "h", Role: domain.RoleUser}}, nil
}

func TestLoginHandler(t *testing.T) {
	r := gin.New()
	NewAuthHandler(fakeAuth{}).MountAPI(r.Group(""), nil)
	w := do(r, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"tok"`)
	assert.NotContains(t, w.Body.String(), `"h"`)

	r = gin.New()
	NewAuthHandler(fakeAuth{err: domain.WithMsg(domain.ErrInvalidCredentials, "Invalid credentials")}).MountAPI(r.Group(""), nil)
	w = do(r, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")

	w = do(r, http.MethodPost, "/auth/login", `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
