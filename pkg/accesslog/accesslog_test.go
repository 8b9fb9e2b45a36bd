package accesslog

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/filter"
	"github.com/e-gov/TARA-GovSSO-InProxy/pkg/system"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(log *zap.Logger, enabled bool, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Middlewares(log, enabled, "/actuator/health")...)
	r.Any("/*path", handler)
	return r
}

func TestLoggerAttributesClientID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(zap.New(core), true, func(c *gin.Context) {
		c.Request.Header.Set(filter.ClientIDHeader, "client-a")
		c.Set(system.ClientIDKey, "client-a")
		c.String(http.StatusOK, "hello")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/oauth2/token", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0].ContextMap()
	assert.Equal(t, "client-a", entry["client_id"])
	assert.Equal(t, "HTTP/1.1", entry["proto"])
	assert.EqualValues(t, 5, entry["bytes"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
}

func TestLoggerWithoutClientID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(zap.New(core), true, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/oauth2/auth", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "-", logs.All()[0].ContextMap()["client_id"])
}

func TestLoggerUsesHeaderValue(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(zap.New(core), true, func(c *gin.Context) {
		c.Request.Header.Set(filter.ClientIDHeader, filter.UnknownClientID)
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/oauth2/token", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, filter.UnknownClientID, logs.All()[0].ContextMap()["client_id"])
}

func TestLoggerSkipsPaths(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(zap.New(core), true, func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/actuator/health", nil))

	assert.Equal(t, 0, logs.Len())
}

func TestDisabledAccessLogStillRecovers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(zap.New(core), false, func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}
