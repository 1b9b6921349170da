package app

import (
	"net/http"

	"github.com/benchtrack/benchtrack/internal/config"
	"github.com/benchtrack/benchtrack/pkg/session"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all router middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(deps.Metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Debugf("%s %s", req.Method, req.URL.Path)
			next.ServeHTTP(w, req)
		})
	})

	// X-Session-ID (or the proxy identity header) into the caller on the context
	r.Use(session.Middleware(deps.Sessions, deps.UserDirectory, deps.IdentityHeader))
}

// WithCors wraps the whole router so preflight requests are answered before route matching.
func WithCors(h http.Handler, cfg config.Cors) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", session.Header},
		ExposedHeaders:   []string{session.Header},
		AllowCredentials: true,
	})(h)
}
