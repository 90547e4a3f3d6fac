package httpapi

import (
	"context"
	"net/http"

	"github.com/antozhu/manhunt/internal/errs"
)

type ctxKey int

const playerIDKey ctxKey = iota

// PlayerIDHeader carries the verified caller identity. Token validation is
// the auth collaborator's job; by the time a request reaches this server
// the header holds a trusted player id.
const PlayerIDHeader = "X-Player-ID"

// withIdentity copies the caller identity into the request context.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(PlayerIDHeader); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), playerIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// callerID returns the verified player id, or an Unauthorized error when
// the request carries none.
func callerID(r *http.Request) (string, error) {
	id, _ := r.Context().Value(playerIDKey).(string)
	if id == "" {
		return "", errs.Unauthorized("MISSING_IDENTITY", "request carries no verified player id")
	}
	return id, nil
}

// withCORS permits any origin on reads and echoes configured origins with
// credentials on writes.
func withCORS(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		case r.Method == http.MethodGet || r.Method == http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+PlayerIDHeader)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
