package server

import (
	"net/http"
	"project-hub/auth"
	"project-hub/errors"
)

// requireRole rejects callers without a valid token carrying role.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.tokens.ValidateToken(auth.TokenFromRequest(r))
			if err != nil {
				s.log.Debug("Rejected internal call", "path", r.URL.Path, "error", err)
				writeError(w, err)
				return
			}
			if !claims.HasRole(role) {
				writeError(w, errors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
