package main

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
)

// corsHandler wraps the router for browser clients. No origins configured
// means any origin.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}),
		gorillahandlers.ExposedHeaders([]string{"X-Request-ID"}),
		gorillahandlers.AllowCredentials(),
	)
}
