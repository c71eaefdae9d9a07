package middleware

import (
	"net"
	"net/http"
	"strings"
)

// AccessTokenCookie is read when no Authorization header is sent.
const AccessTokenCookie = "access_token"

// TokenFromRequest prefers a Bearer Authorization header over the access token
// cookie. A malformed header yields no token rather than falling back.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		tok, _ := bearerToken(h)
		return tok
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func bearerToken(h string) (string, bool) {
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

// clientIP is the peer address of the connection. Forwarded headers are
// client-controlled and ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
