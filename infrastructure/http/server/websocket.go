package server

import (
	"context"
	"net/http"
	"project-hub/auth"
	"project-hub/domain"
	"project-hub/sink"
)

// handleWebsocket authenticates, upgrades and keeps the session open until
// the client leaves or ctx ends.
func (s *Server) handleWebsocket(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokens.ValidateToken(auth.TokenFromRequest(r))
		if err != nil {
			writeError(w, err)
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug("Websocket upgrade failed", "error", err)
			return
		}
		userID := domain.UserID(claims.UserID)
		session := sink.NewWebsocketSink(s.log, conn, s.cfg.ConnectionBufferSize, s.cfg.WriteTimeout, s.cfg.PingInterval)

		s.realtime.OnUserConnected(ctx, userID, session)
		session.Serve(ctx)
		s.realtime.OnUserDisconnected(userID, session)
	}
}
