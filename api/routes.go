package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"cinelink/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register wires every API route onto the router.
func Register(
	r *mux.Router,
	healthHandler *handlers.HealthHandler,
	movieLinksHandler *handlers.MovieLinksHandler,
	moviesHandler *handlers.MoviesHandler,
	transcriptsHandler *handlers.TranscriptsHandler,
	encryptionHandler *handlers.EncryptionHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/health", handleOptions).Methods(http.MethodOptions)

	// Link lookup and resolution
	api.HandleFunc("/movie-links", movieLinksHandler.GetMovieLinks).Methods(http.MethodPost)
	api.HandleFunc("/movie-links", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/movie-links/with-fallback", movieLinksHandler.GetMovieLinksWithFallback).Methods(http.MethodPost)
	api.HandleFunc("/movie-links/with-fallback", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/movie-links/force-parse", movieLinksHandler.ForceParse).Methods(http.MethodPost)
	api.HandleFunc("/movie-links/force-parse", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/movie-links/detail", moviesHandler.Detail).Methods(http.MethodGet)
	api.HandleFunc("/movie-links/detail", handleOptions).Methods(http.MethodOptions)

	// Library management
	api.HandleFunc("/movies", moviesHandler.UpsertMovie).Methods(http.MethodPost)
	api.HandleFunc("/movies", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/movies/search", moviesHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/movies/search", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/movies/stats", moviesHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/movies/stats", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/movie-links/manage", moviesHandler.ManageLink).Methods(http.MethodPost)
	api.HandleFunc("/movie-links/manage", handleOptions).Methods(http.MethodOptions)

	// Transcript references
	api.HandleFunc("/transcripts", transcriptsHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/transcripts", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/transcripts/{id}", transcriptsHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/transcripts/{id}", handleOptions).Methods(http.MethodOptions)

	// Encrypted transport
	api.HandleFunc("/encryption/public-key", encryptionHandler.PublicKey).Methods(http.MethodGet)
	api.HandleFunc("/encryption/public-key", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/encryption/test", encryptionHandler.EncryptionTest).Methods(http.MethodPost)
	api.HandleFunc("/encryption/test", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/encrypted/movie-links", encryptionHandler.EncryptedMovieLinks).Methods(http.MethodPost)
	api.HandleFunc("/encrypted/movie-links", handleOptions).Methods(http.MethodOptions)
}
