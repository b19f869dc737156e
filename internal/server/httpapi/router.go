package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/server/metrics"
	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Service        ProfileService
	Store          ReadinessChecker
	Metrics        *metrics.Metrics
	Logger         logging.Logger
	AllowedOrigins []string

	// RateLimiter guards /api routes when set.
	RateLimiter *RateLimiter
}

// NewRouter wires the routes and the middleware chain. CORS, logging and
// recovery wrap the whole router so they also see preflight requests and
// unmatched paths.
func NewRouter(cfg RouterConfig) http.Handler {
	h := NewHandlers(cfg.Service, cfg.Store, cfg.Logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.Use(MetricsMiddleware(cfg.Metrics))

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Handler)
	}
	api.HandleFunc("/submit/create", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/submit/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/submit/update", h.Update).Methods(http.MethodPost)
	api.HandleFunc("/users/{username}/classify", h.Classify).Methods(http.MethodPost)
	api.HandleFunc("/users/{username}/recommendations", h.Recommendations).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = LoggingMiddleware(cfg.Logger)(handler)
	handler = RecoverMiddleware(cfg.Logger)(handler)
	return handler
}
