package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"corpus-gen/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, cfg *config.Config) (*gin.Engine, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(&buf)

	r := gin.New()
	r.Use(LoggerMiddleware(logger), CORS(cfg))
	g := r.Group("/sessions/:id", SessionID("id"))
	g.GET("", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	g.DELETE("", func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})
	return r, &buf
}

func TestLoggerMiddleware_RequestAndSessionID(t *testing.T) {
	r, buf := newEngine(t, &config.Config{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/abc?x=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	requestID := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, requestID, entry["request_id"])
	assert.Equal(t, "/sessions/:id", entry["route"])
	assert.Equal(t, "x=1", entry["query"])
}

func TestLoggerMiddleware_KeepsIncomingRequestIDAndWarnsOn4xx(t *testing.T) {
	r, buf := newEngine(t, &config.Config{})

	req := httptest.NewRequest(http.MethodDelete, "/sessions/abc", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, float64(http.StatusConflict), entry["status"])
	assert.NotContains(t, entry, "query")
}

func TestCORS(t *testing.T) {
	cfg := &config.Config{CORS: config.CORSConfig{
		Origins:          []string{"http://localhost:8501"},
		AllowCredentials: true,
	}}
	r, _ := newEngine(t, cfg)

	t.Run("允许的来源", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/sessions/abc", nil)
		req.Header.Set("Origin", "http://localhost:8501")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:8501", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	})

	t.Run("未知来源", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})
}
