package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedEngine(scope string, perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", RateLimit(scope, perMinute), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	// 2/min gives a burst of one
	r := limitedEngine("test-burst", 2)

	require.Equal(t, http.StatusOK, hit(r, "10.0.0.1").Code)

	w := hit(r, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":42901`)

	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.2").Code, "other clients keep their own bucket")
}

func TestRateLimitScopesAreIndependent(t *testing.T) {
	a := limitedEngine("test-scope-a", 2)
	b := limitedEngine("test-scope-b", 2)

	require.Equal(t, http.StatusOK, hit(a, "10.0.1.1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(a, "10.0.1.1").Code)
	assert.Equal(t, http.StatusOK, hit(b, "10.0.1.1").Code)
}
