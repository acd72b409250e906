package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/solyse/club-flow/pkg/config"
)

// CORS applies the allowed-origin policy for the browser client. The session
// header must be both accepted and exposed so the SPA can carry it across
// requests.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-BC-Session", "X-Requested-With"},
		ExposedHeaders:   []string{"X-BC-Session"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
