package main

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAPIKey validates the Bearer token in the Authorization header. An
// empty key leaves the endpoint open.
func requireAPIKey(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))

			// Constant time so latency says nothing about how much of the guess matched.
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedKey)) != 1 {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized: Invalid or missing API Key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
