// Package server is the HTTP surface of pinauth-server: PIN login, the
// second-factor step, logout and the route-restricted application area.
package server

import (
	"net/http"
	"time"

	"github.com/MrEthical07/pinauth"
	pinmw "github.com/MrEthical07/pinauth/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configures [New].
type Options struct {
	Engine         *pinauth.Engine
	Logger         *zap.Logger
	// AllowedOrigins enables credentialed CORS for exactly these origins.
	// Empty leaves CORS off.
	AllowedOrigins []string
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
	// App serves GET /app/{route} once the session and route checks pass. The
	// default echoes the route and the caller's allow-list.
	App            http.Handler
	RequestTimeout time.Duration
}

// Server holds the handlers' dependencies.
type Server struct {
	engine *pinauth.Engine
	logger *zap.Logger
}

// AppPath is the URL path of a logical route.
func AppPath(route string) string {
	return "/app/" + route
}

func routeParam(r *http.Request) string {
	return chi.URLParam(r, "route")
}

// New builds the router.
func New(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{engine: opts.Engine, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/pin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/second-factor", s.handleSecondFactor)
		r.Post("/logout", s.handleLogout)
	})

	app := opts.App
	if app == nil {
		app = http.HandlerFunc(s.handleApp)
	}
	r.Route("/app", func(r chi.Router) {
		r.Use(pinmw.RequireSession(s.engine))
		r.With(
			pinmw.RestrictRoutes(s.engine, routeParam, AppPath),
			pinmw.CaptureRedirect(s.engine, routeParam, AppPath),
		).Get("/{route}", app.ServeHTTP)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
