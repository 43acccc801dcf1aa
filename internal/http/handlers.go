package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-page/internal/boundary"
	"github.com/kjstillabower/weather-page/internal/client"
	"github.com/kjstillabower/weather-page/internal/lifecycle"
	"github.com/kjstillabower/weather-page/internal/models"
	"github.com/kjstillabower/weather-page/internal/observability"
	"github.com/kjstillabower/weather-page/internal/render"
	"github.com/kjstillabower/weather-page/internal/service"
	"github.com/kjstillabower/weather-page/internal/traffic"
)

// NavigationHeader carries the host's navigation state ("idle", "loading",
// "submitting") into the page request.
const NavigationHeader = "X-Navigation-State"

// NavigationFunc reports the navigation status for a request.
type NavigationFunc func(r *http.Request) models.Navigation

// NavigationFromRequest reads the state from NavigationHeader and the search
// string from the request's own query.
func NavigationFromRequest(r *http.Request) models.Navigation {
	nav := models.Navigation{State: r.Header.Get(NavigationHeader)}
	if r.URL.RawQuery != "" {
		nav.Search = "?" + r.URL.RawQuery
	}
	return nav
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	DegradedErrorPct int
	Version          string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	page             *service.WeatherPage
	renderer         *render.Renderer
	window           *traffic.Window
	healthConfig     *HealthConfig
	logger           *zap.Logger
	navigation       NavigationFunc
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil navigation falls back to
// NavigationFromRequest; a nil window disables outcome tracking.
func NewHandler(
	page *service.WeatherPage,
	renderer *render.Renderer,
	window *traffic.Window,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	navigation NavigationFunc,
) *Handler {
	if navigation == nil {
		navigation = NavigationFromRequest
	}
	if window == nil {
		window = traffic.NewWindow(time.Minute)
	}
	return &Handler{
		page:         page,
		renderer:     renderer,
		window:       window,
		healthConfig: healthConfig,
		logger:       logger,
		navigation:   navigation,
	}
}

// GetIndex handles GET /?q={city}.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	vm, err := h.page.Load(r.Context(), r.URL.Query(), h.navigation(r))
	if err != nil {
		h.recordOutcome(err)
		h.RenderFallback(w, r, boundary.Classify(err))
		return
	}
	h.window.RecordSuccess()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Page(w, vm); err != nil {
		h.RenderFallback(w, r, boundary.Classify(err))
		return
	}
	observability.RecordPageRender("ok")
}

// recordOutcome feeds the degraded check. An unknown city is an answered
// lookup; a rejected query never reached the upstream.
func (h *Handler) recordOutcome(err error) {
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		h.window.RecordSuccess()
	case boundary.Classify(err).Kind == boundary.KindRoute:
	default:
		h.window.RecordError()
	}
}

// NotFound renders the route-error page for paths no route matches.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.RenderFallback(w, r, boundary.Classify(boundary.NewRouteError(http.StatusNotFound, "", nil)))
}

// TooManyRequests renders the route-error page for inbound rate-limit denials.
func (h *Handler) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	h.window.RecordDenied()
	h.RenderFallback(w, r, boundary.Classify(boundary.NewRouteError(http.StatusTooManyRequests, "Too many requests, try again shortly", nil)))
}

// RenderFallback writes the error boundary page for fb with the matching
// status code. Generic failures are logged at error level.
func (h *Handler) RenderFallback(w http.ResponseWriter, r *http.Request, fb boundary.Fallback) {
	logger := observability.LoggerFromContext(r.Context())
	status := fallbackStatus(fb)

	switch fb.Kind {
	case boundary.KindRoute:
		logger.Debug("route error", zap.Int("status", fb.Status), zap.String("data", fb.Data), zap.Error(fb.Err))
	case boundary.KindGeneric:
		logger.Error("page error",
			zap.Error(fb.Err),
			zap.String("category", string(client.CategorizeError(fb.Err))),
			zap.Int("status", status))
	default:
		logger.Error("page failed with unknown error")
	}
	observability.RecordPageRender(fb.Kind.String())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.Fallback(w, fb); err != nil {
		logger.Error("render fallback", zap.Error(err))
	}
}

// fallbackStatus maps a fallback to its response code: the route error's own
// status, 502 for upstream failures and 500 otherwise.
func fallbackStatus(fb boundary.Fallback) int {
	switch fb.Kind {
	case boundary.KindRoute:
		if fb.Status >= 400 && fb.Status <= 599 {
			return fb.Status
		}
	case boundary.KindGeneric:
		if c := client.CategorizeError(fb.Err); c != "" && c != client.ErrorCategoryUnknown {
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	errs, total := h.window.ErrorRate()
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   version,
		"checks":    checks,
		"uptime":    lifecycle.Uptime().Truncate(time.Second).String(),
		"window":    map[string]int{"errors": errs, "total": total, "denied": h.window.DenialCount()},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates shutting-down > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.window.Degraded(h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
