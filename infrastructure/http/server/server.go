package server

import (
	"context"
	"log/slog"
	"net/http"
	"project-hub/auth"
	"project-hub/services"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	AllowedOrigins       []string
	ConnectionBufferSize int
	WriteTimeout         time.Duration
	PingInterval         time.Duration
}

// Server exposes the websocket endpoint and the internal API.
type Server struct {
	log       *slog.Logger
	realtime  services.IRealtimeService
	reminders services.IReminderService
	tokens    *auth.TokenManager
	gatherer  prometheus.Gatherer
	ready     func() error
	cfg       Config
	upgrader  websocket.Upgrader
}

func NewServer(log *slog.Logger, realtime services.IRealtimeService, reminders services.IReminderService,
	tokens *auth.TokenManager, gatherer prometheus.Gatherer, ready func() error, cfg Config) *Server {
	s := &Server{
		log:       log,
		realtime:  realtime,
		reminders: reminders,
		tokens:    tokens,
		gatherer:  gatherer,
		ready:     ready,
		cfg:       cfg,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router wires every route. ctx bounds the lifetime of websocket sessions,
// which outlive the HTTP server's own shutdown tracking once hijacked.
func (s *Server) Router(ctx context.Context) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebsocket(ctx)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.requireRole(auth.RoleService))
	api.HandleFunc("/rooms/{roomId}/events", s.handleNotifyRoom).Methods(http.MethodPost)
	api.HandleFunc("/users/{userId}/events", s.handleNotifyUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{userId}/rooms", s.handleJoinRoom).Methods(http.MethodPost)
	api.HandleFunc("/reminders/{taskId}", s.handleScheduleReminder).Methods(http.MethodPut)
	api.HandleFunc("/reminders/{taskId}", s.handleCancelReminder).Methods(http.MethodDelete)
	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
