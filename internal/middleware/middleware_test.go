package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wastewatch-api/internal/models"
	"github.com/noah-isme/wastewatch-api/internal/service"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*models.Caller, error) {
	if token == "good" {
		return &models.Caller{UserID: "u1", Name: "Ana"}, nil
	}
	return nil, errors.New("bad token")
}

func resolveCaller(t *testing.T, header string) *models.Caller {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var seen *models.Caller
	r.Use(Identity(stubValidator{}))
	r.GET("/ping", func(c *gin.Context) {
		seen = service.CallerFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	return seen
}

func TestIdentityAttachesCaller(t *testing.T) {
	caller := resolveCaller(t, "Bearer good")
	require.NotNil(t, caller)
	assert.Equal(t, "u1", caller.UserID)
}

func TestIdentityNeverBlocks(t *testing.T) {
	for _, header := range []string{"", "Bearer bad", "Basic abc", "Bearer "} {
		assert.Nil(t, resolveCaller(t, header), header)
	}
}

func TestResponseMetaCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
