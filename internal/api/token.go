// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// sessionCookie is the cookie clients may carry the API token in.
const sessionCookie = "steamvault_session"

// extractToken retrieves the API token from the request, in order of
// preference: Authorization bearer, X-API-Token header, session cookie.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if t := r.Header.Get("X-API-Token"); t != "" {
		return t
	}
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// authorizeToken reports whether got matches expected, in constant time.
// Empty tokens never authorize.
func authorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

func authorizeRequest(r *http.Request, expected string) bool {
	if r == nil {
		return false
	}
	return authorizeToken(extractToken(r), expected)
}
