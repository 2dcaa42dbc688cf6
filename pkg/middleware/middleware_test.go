package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(NewRequestIDMiddleware())
	r.Use(mw...)
	r.Any("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("requestID"))
	})
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, w.Body.String(), 10)
	require.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "edge-1234")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "edge-1234", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.NotEqual(t, "<script>", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newEngine(RateLimiterMiddleware(ctx, RateLimiterConfig{RequestsPerSecond: 1, Burst: 2}))

	codes := []int{}
	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}

	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newEngine(RateLimiterMiddleware(context.Background(), RateLimiterConfig{}))

	for range 50 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestBodySizeLimiter(t *testing.T) {
	r := newEngine(BodySizeLimiter(8))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("way too large")))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "file_too_large", body["reason"])
}

func TestTurnstile(t *testing.T) {
	verify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "secret", r.PostForm.Get("secret"))

		ok := r.PostForm.Get("response") == "good"
		json.NewEncoder(w).Encode(turnstileResponse{Success: ok})
	}))
	defer verify.Close()

	r := newEngine(NewTurnstileMiddleware(TurnstileConfig{
		Enabled:   true,
		Secret:    "secret",
		VerifyURL: verify.URL,
	}))

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if token != "" {
			req.Header.Set("TurnstileToken", token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusBadRequest, send(""))
	require.Equal(t, http.StatusUnauthorized, send("bad"))
	require.Equal(t, http.StatusOK, send("good"))
}

func TestTurnstileDisabled(t *testing.T) {
	r := newEngine(NewTurnstileMiddleware(TurnstileConfig{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
