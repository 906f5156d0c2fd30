package docs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type openAPI struct {
	OpenAPI    string                    `yaml:"openapi"`
	Paths      map[string]map[string]any `yaml:"paths"`
	Components struct {
		Schemas map[string]struct {
			Required   []string       `yaml:"required"`
			Properties map[string]any `yaml:"properties"`
		} `yaml:"schemas"`
	} `yaml:"components"`
}

func TestDocumentParses(t *testing.T) {
	var doc openAPI
	require.NoError(t, yaml.Unmarshal(Document(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/users/{id}")

	// 响应模型不得出现密码字段
	for _, name := range []string{"UserResponse", "AuthResponse", "ListUsersResponse"} {
		s, ok := doc.Components.Schemas[name]
		require.True(t, ok, name)
		assert.NotContains(t, s.Properties, "password", name)
		assert.NotContains(t, s.Properties, "passwordHash", name)
	}
	assert.ElementsMatch(t, []string{"email", "password"}, doc.Components.Schemas["CreateUserRequest"].Required)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Mount(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "unpkg.com")
	assert.Contains(t, w.Body.String(), "swagger-ui")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/openapi.yaml", nil))
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, Document(), w.Body.Bytes())
}
