package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"barberline/internal/calls"
	"barberline/internal/ratelimit"
	"barberline/internal/vapi"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, routeDeps{
		limiter:    ratelimit.New(nil, nil),
		vapiSecret: "s3cret",
		webhook:    vapi.Webhook{Processor: calls.NewProcessor(calls.NewMemoryRepo(), nil)},
	})
	return r
}

func do(r http.Handler, method, path, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{"message":{"type":"status-update"}}`))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(vapi.SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRemovedSMSRelay(t *testing.T) {
	r := testRouter()
	for _, m := range []string{http.MethodPost, http.MethodGet} {
		w := do(r, m, "/api/twilio/send", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"This endpoint has been removed"}`, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	w := do(testRouter(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_SecretCheckedBeforeRateLimit(t *testing.T) {
	r := testRouter()

	// Unauthenticated traffic does not spend the caller's quota.
	for i := 0; i < ratelimit.PolicyWebhook.Limit+5; i++ {
		require.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/vapi/webhook", "wrong").Code)
	}
	for i := 0; i < ratelimit.PolicyWebhook.Limit; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/vapi/webhook", "s3cret").Code)
	}

	w := do(r, http.MethodPost, "/api/vapi/webhook", "s3cret")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"`+ratelimit.TooManyRequestsMessage+`"}`, w.Body.String())
}

func TestOAuthRoutesAbsentWhenNotConfigured(t *testing.T) {
	w := do(testRouter(), http.MethodGet, "/oauth/start", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
