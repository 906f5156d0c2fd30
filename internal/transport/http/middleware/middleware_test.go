package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"account-api/internal/core/auth"
	"account-api/internal/domain"
	"account-api/internal/transport/http/ez"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func envelopeCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var env struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Code
}

func TestAuthJWT(t *testing.T) {
	j := &auth.JWTer{Secret: []byte("k"), Issuer: "test", TTL: time.Minute}
	userTok, err := j.Issue("u-1", "u@example.com", "USER")
	require.NoError(t, err)
	adminTok, err := j.Issue("a-1", "a@example.com", "ADMIN")
	require.NoError(t, err)

	build := func(role string) *gin.Engine {
		r := gin.New()
		r.GET("/p", AuthJWT(j, role), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"uid": c.GetString(ez.CtxUserID), "role": c.GetString(ez.CtxRole)})
		})
		return r
	}

	tests := []struct {
		name   string
		role   string
		header string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong_scheme", "", "Basic abc", http.StatusUnauthorized},
		{"garbage", "", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"user_ok", "", "Bearer " + userTok, http.StatusOK},
		{"lowercase_scheme", "", "bearer " + userTok, http.StatusOK},
		{"role_mismatch", "ADMIN", "Bearer " + userTok, http.StatusForbidden},
		{"admin_ok", "ADMIN", "Bearer " + adminTok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(build(tt.role), req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want != http.StatusOK {
				assert.Equal(t, tt.want, envelopeCode(t, w))
			}
		})
	}

	w := serve(build(""), func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		req.Header.Set("Authorization", "Bearer "+userTok)
		return req
	}())
	assert.JSONEq(t, `{"uid":"u-1","role":"USER"}`, w.Body.String())
}

type lookupFunc func(ctx context.Context, id string) (*domain.User, error)

func (f lookupFunc) FindOne(ctx context.Context, id string) (*domain.User, error) { return f(ctx, id) }

func TestRequireCurrentRole(t *testing.T) {
	j := &auth.JWTer{Secret: []byte("k"), Issuer: "test", TTL: time.Minute}
	tok, err := j.Issue("a-1", "a@example.com", "ADMIN")
	require.NoError(t, err)

	build := func(l lookupFunc) *gin.Engine {
		r := gin.New()
		r.GET("/p", AuthJWT(j, "ADMIN"), RequireCurrentRole(l, "ADMIN"), func(c *gin.Context) {
			c.String(http.StatusOK, c.GetString(ez.CtxRole))
		})
		return r
	}
	roleIs := func(role domain.Role) lookupFunc {
		return func(_ context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, Role: role}, nil
		}
	}

	tests := []struct {
		name   string
		lookup lookupFunc
		want   int
	}{
		{"still_admin", roleIs(domain.RoleAdmin), http.StatusOK},
		{"demoted", roleIs(domain.RoleUser), http.StatusForbidden},
		{"deleted", func(context.Context, string) (*domain.User, error) {
			return nil, domain.WithMsg(domain.ErrUserNotFound, "gone")
		}, http.StatusUnauthorized},
		{"store_down", func(context.Context, string) (*domain.User, error) { return nil, assert.AnError }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			w := serve(build(tt.lookup), req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "ADMIN", w.Body.String())
			} else {
				assert.Equal(t, tt.want, envelopeCode(t, w))
			}
		})
	}
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimitPerIP(0, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := func(ip string) *http.Request {
		rq := httptest.NewRequest(http.MethodGet, "/x", nil)
		rq.RemoteAddr = ip + ":1234"
		return rq
	}
	assert.Equal(t, http.StatusNoContent, serve(r, req("10.0.0.1")).Code)
	w := serve(r, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 429, envelopeCode(t, w))
	// 另一个 IP 有自己的桶
	assert.Equal(t, http.StatusNoContent, serve(r, req("10.0.0.2")).Code)
}

func TestTimeoutWritesGatewayTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/slow", Timeout(10*time.Millisecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	w := serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, 504, envelopeCode(t, w))
}

func TestConcurrencyLimitRejectsWhenSaturated(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	r := gin.New()
	r.GET("/x", ConcurrencyLimit(1), func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusNoContent)
	})

	done := make(chan int)
	go func() { done <- serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	close(release)
	assert.Equal(t, http.StatusNoContent, <-done)
}

func TestMaxBodyBytesMapsTo413(t *testing.T) {
	type in struct {
		Name string `json:"name"`
	}
	r := gin.New()
	g := r.Group("", MaxBodyBytes(16))
	ez.RegisterAction(ez.New(g), ez.Action[in, in]{
		Method:  http.MethodPost,
		Path:    "/x",
		Binder:  ez.BindJSON,
		Handler: func(_ *gin.Context, v *in) (in, error) { return *v, nil },
	})

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":"`+strings.Repeat("a", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequestID(), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(KeyRequestID))
	assert.Equal(t, w.Header().Get(KeyRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(KeyRequestID, "abc-123")
	w = serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(KeyRequestID))
}

func TestAccessLogMasksAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusInternalServerError)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/ok?token=s3cret&q=ada", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	ok := entries[0]
	assert.Equal(t, zapcore.InfoLevel, ok.Level)
	assert.Equal(t, "/ok", ok.ContextMap()["path"])
	assert.NotEmpty(t, ok.ContextMap()["rid"])
	query := ok.ContextMap()["query"].(map[string][]string)
	assert.Equal(t, []string{"****"}, query["token"])
	assert.Equal(t, []string{"ada"}, query["q"])

	boom := entries[1]
	assert.Equal(t, zapcore.ErrorLevel, boom.Level)
	assert.Contains(t, boom.ContextMap()["errors"], assert.AnError.Error())
}
