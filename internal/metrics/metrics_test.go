package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegister_IsIdempotentAndServes(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	h, err := Register(reg)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}

	RateLimitDenied("booking")
	CallLog("recorded", "booked")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, want := range []string{`rate_limit_denied_total{namespace="booking"}`, `call_logs_recorded_total{outcome="booked",result="recorded"}`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in metrics output", want)
		}
	}
}
