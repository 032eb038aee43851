package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fakhrymubarak/weather-lookup/internal/config"
	"github.com/fakhrymubarak/weather-lookup/internal/middleware"
)

// NewRouter wires the weather endpoints. Only /search is rate limited since
// it is the only route that reaches the upstream API.
func NewRouter(h *WeatherHandler, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if limiter != nil {
		r.With(limiter.Handler).Post("/search", h.HandleSearch)
	} else {
		r.Post("/search", h.HandleSearch)
	}
	r.Get("/state", h.HandleState)
	r.Get("/view", h.HandleView)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		config.GetLogger().Debugw("http request",
			"requestID", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// NewServer builds the http.Server with the configured timeouts.
func NewServer(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + config.GetServerPort(),
		Handler:           handler,
		ReadHeaderTimeout: config.GetServerTimeout("read_header_timeout"),
		ReadTimeout:       config.GetServerTimeout("read_timeout"),
		WriteTimeout:      config.GetServerTimeout("write_timeout"),
		IdleTimeout:       config.GetServerTimeout("idle_timeout"),
	}
}
