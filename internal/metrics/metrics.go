package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	vapiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vapi_requests_total",
		Help: "Voice agent requests by endpoint and response status",
	}, []string{"endpoint", "status"})

	rateLimitDeniedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_denied_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"namespace"})

	callLogsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "call_logs_recorded_total",
		Help: "End-of-call reports by processing result and outcome",
	}, []string{"result", "outcome"}) // result: recorded|duplicate|dropped

	providerErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_provider_errors_total",
		Help: "Booking provider failures by provider and error kind",
	}, []string{"provider", "kind"})

	oauthLinkTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_link_total",
		Help: "OAuth callback results",
	}, []string{"result"})
)

// Register adds all collectors to reg (prometheus.DefaultRegisterer when nil)
// and returns the /metrics handler. Registering twice is not an error.
func Register(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		vapiRequestsTotal,
		rateLimitDeniedTotal,
		callLogsRecordedTotal,
		providerErrorsTotal,
		oauthLinkTotal,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{}), nil
	}
	return promhttp.Handler(), nil
}

func VapiRequest(endpoint string, status int) {
	vapiRequestsTotal.WithLabelValues(endpoint, http.StatusText(status)).Inc()
}

func RateLimitDenied(namespace string) {
	rateLimitDeniedTotal.WithLabelValues(namespace).Inc()
}

func CallLog(result, outcome string) {
	callLogsRecordedTotal.WithLabelValues(result, outcome).Inc()
}

func ProviderError(provider, kind string) {
	providerErrorsTotal.WithLabelValues(provider, kind).Inc()
}

func OAuthLink(result string) {
	oauthLinkTotal.WithLabelValues(result).Inc()
}
