package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http and service packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/").Observe(0.01)
	WeatherAPICallsTotal.WithLabelValues("success").Inc()
	WeatherAPICallsTotal.WithLabelValues("error").Inc()
	WeatherAPIDuration.WithLabelValues("success").Observe(0.1)
	WeatherAPIErrorsTotal.WithLabelValues("network").Inc()
	PageRendersTotal.WithLabelValues("ok").Inc()
	WeatherQueriesTotal.Inc()
	WeatherQueriesByLocationTotal.WithLabelValues("nairobi").Inc()
	RateLimitDeniedTotal.Inc()
}

// TestMetricLocationLabel verifies tracked cities keep their name and the rest
// collapse to "other".
func TestMetricLocationLabel(t *testing.T) {
	SetTrackedLocations([]string{"Nairobi", "Tokyo"})
	defer SetTrackedLocations(nil)

	tests := map[string]string{
		"Nairobi":     "nairobi",
		"  tokyo ":    "tokyo",
		"Springfield": "other",
		"":            "other",
	}
	for in, want := range tests {
		if got := MetricLocationLabel(in); got != want {
			t.Errorf("MetricLocationLabel(%q) = %q, want %q", in, got, want)
		}
	}
	RecordWeatherQuery("Tokyo")
	RecordWeatherQuery("unknown-city")
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	RecordPageRender("ok")
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "pageRendersTotal") {
		t.Error("MetricsHandler response should contain pageRendersTotal")
	}
}
