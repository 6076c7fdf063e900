package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS wraps h with the permissive policy the admin panel and public site rely on.
// Preflight requests are answered with 200 and never reach h.
func CORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodPatch, http.MethodOptions,
		},
		AllowedHeaders:       []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposedHeaders:       []string{"Content-Length", "Content-Type"},
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusOK,
	}).Handler(h)
}
