package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-page/internal/boundary"
	"github.com/kjstillabower/weather-page/internal/observability"
	"github.com/kjstillabower/weather-page/internal/render"
)

// NewRouter wires the page, health, metrics and static routes behind the
// common middleware chain. limiter and tracker may be nil.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, tracker *InFlightTracker) *mux.Router {
	if tracker == nil {
		tracker = &InFlightTracker{}
	}
	chain := []mux.MiddlewareFunc{
		CorrelationIDMiddleware(logger),
		MetricsMiddleware,
		tracker.Middleware,
		RecoverMiddleware(h),
	}

	router := mux.NewRouter()
	router.Use(chain...)

	page := RateLimitMiddleware(limiter, http.HandlerFunc(h.TooManyRequests))(http.HandlerFunc(h.GetIndex))
	router.Handle("/", page).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.PathPrefix("/static/").Handler(render.StaticHandler()).Methods(http.MethodGet, http.MethodHead)

	// mux skips router middleware when nothing matches.
	router.NotFoundHandler = wrap(http.HandlerFunc(h.NotFound), chain)
	router.MethodNotAllowedHandler = wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.RenderFallback(w, r, boundary.Classify(boundary.NewRouteError(http.StatusMethodNotAllowed, "", nil)))
	}), chain)
	return router
}

func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
