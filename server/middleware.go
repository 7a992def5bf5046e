package server

import (
	"errors"
	"net/http"
	"strings"

	"soundvault/core/session"
	"soundvault/logger"
)

// sessionToken extracts the opaque session token from the session cookie or,
// failing that, a bearer Authorization header.
func (h *APIHandler) sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(h.cfg.SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// requireAuth resolves the session token to an account and attaches it to the
// request context. Absent, invalid or stale sessions get a 401.
func (h *APIHandler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := h.sessionToken(r)
		if token == "" {
			writeError(w, authenticationError("Not authenticated. Please login."))
			return
		}

		userID, err := h.sessions.Get(r.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				writeError(w, authenticationError("Not authenticated. Please login."))
				return
			}
			writeError(w, err)
			return
		}

		user, err := h.users.GetUserByID(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if user == nil {
			// The account backing the session is gone; the session is garbage.
			if err := h.sessions.Destroy(r.Context(), token); err != nil {
				logger.Warn("failed to destroy stale session", logger.ErrorField(err))
			}
			writeError(w, authenticationError("User not found. Please login again."))
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
	}
}

// requireAdmin layers the role check on top of requireAuth.
func (h *APIHandler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if !user.Role.IsAdmin() {
			writeError(w, forbiddenError("Access denied. Admin privileges required."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
