/*
Copyright (C) 2026 Openair Works

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package auth guards the operational API with a static bearer token.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenMiddleware rejects requests whose Authorization header does not carry
// the configured bearer token. An empty token disables the check, which is
// the expected setup behind a trusted reverse proxy.
func TokenMiddleware(token string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := sha256.Sum256([]byte(bearerToken(r)))
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
