package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"renovateAi/internal/metrics"
	"renovateAi/internal/prompts"
	"renovateAi/internal/sessions"
	"renovateAi/internal/vision"
)

// Options carries the handlers and settings the router needs.
type Options struct {
	Port     string
	Sessions sessions.Handler
	Vision   vision.Handler
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// WriteTimeout must cover a full concept batch.
	WriteTimeout time.Duration
	// Static serves the frontend; nil disables it.
	Static http.Handler
}

// New constructs the HTTP server with routes and middleware.
func New(opts Options) *http.Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", opts.Metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Route("/sessions", opts.Sessions.Routes)
		r.Route("/vision", func(r chi.Router) {
			r.Post("/analyze", opts.Vision.Analyze)
			r.Post("/quick-check", opts.Vision.QuickCheck)
			r.Post("/render", opts.Vision.Render)
		})
		r.Post("/prompts/compile", prompts.CompileHandler)
	})

	if opts.Static != nil {
		router.Handle("/*", opts.Static)
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Minute
	}
	srv := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server ready", zap.String("addr", srv.Addr), zap.Duration("write_timeout", writeTimeout))
	return srv
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
