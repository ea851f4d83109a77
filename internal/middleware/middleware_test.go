package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/panic", func(c *gin.Context) { panic("boom") })
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRateLimit(t *testing.T) {
	log := logger.New(io.Discard, false)
	router := newRouter(RateLimit(config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 2}, log))

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/ping").Code)
}

func TestRecovery(t *testing.T) {
	router := newRouter(Recovery(logger.New(io.Discard, false)))

	w := serve(router, http.MethodGet, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(CORS())

	w := serve(router, http.MethodOptions, "/ping")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	router := newRouter(SecurityHeaders(logger.New(io.Discard, false)))

	w := serve(router, http.MethodGet, "/ping")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
