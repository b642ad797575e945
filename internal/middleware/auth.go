package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/auth"
)

// openPrefixes never require credentials. A prefix also covers its
// sub-paths, so /board opens /board/next but not /boardroom.
var openPrefixes = []string{"/health", "/ready", "/metrics", "/board"}

// Auth guards roster edits. Viewing, navigating and sharing stay open:
// safe methods, the board routes, preflight requests and websocket
// upgrades pass through without credentials.
func Auth(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requiresAuth(r) {
				next.ServeHTTP(w, r)
				return
			}

			info, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("roster edit rejected",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", r.Header.Get(RequestIDHeader)),
					zap.Error(err),
				)
				if challenge := challengeFor(err); challenge != "" {
					w.Header().Set("WWW-Authenticate", challenge)
				}
				writeJSONError(w, logger, http.StatusUnauthorized, err.Error())
				return
			}

			logger.Debug("roster edit authenticated",
				zap.String("subject", info.Subject),
				zap.String("auth_method", string(info.Method)),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(auth.WithAuthInfo(r.Context(), info)))
		})
	}
}

func requiresAuth(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	return !isOpenPath(r.URL.Path)
}

func isOpenPath(path string) bool {
	for _, prefix := range openPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// challengeFor picks the WWW-Authenticate challenge for err.
func challengeFor(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return "Basic, API-Key"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return `Basic realm="rosterboard"`
	case errors.Is(err, auth.ErrInvalidAPIKey):
		return "API-Key"
	default:
		return ""
	}
}
