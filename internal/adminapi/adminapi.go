// Package adminapi exposes a small JWT-gated HTTP surface mirroring
// the §6 operator commands DUMP/SIZE/CLEAR (HELP has no endpoint) and
// a read-only relay-mode query, for remote operation of a host-side
// daemon.
// Grounded on cmd/valkyrie/main.go's handler-registration shape.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/Alexishere01/aerolink/internal/hostbridge"
)

// StatsProvider supplies the current statistics snapshot for /api/v1/stats.
type StatsProvider func() map[string]any

// RelayModeProvider reports the current relay mode string ("direct"/"relay").
type RelayModeProvider func() string

// Server is the admin HTTP surface.
type Server struct {
	mux       *http.ServeMux
	secret    []byte
	log       *logrus.Logger
	opLog     *hostbridge.Log
	stats     StatsProvider
	relayMode RelayModeProvider
}

// New constructs a Server. secret gates every endpoint except /health
// via a bearer JWT signed with HS256.
func New(secret []byte, log *logrus.Logger, opLog *hostbridge.Log, stats StatsProvider, relayMode RelayModeProvider) *Server {
	s := &Server{mux: http.NewServeMux(), secret: secret, log: log, opLog: opLog, stats: stats, relayMode: relayMode}
	s.routes()
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/stats", s.authed(s.handleStats))
	s.mux.HandleFunc("/api/v1/relay/mode", s.authed(s.handleRelayMode))
	s.mux.HandleFunc("/api/v1/log/dump", s.authed(s.handleLogDump))
	s.mux.HandleFunc("/api/v1/log/size", s.authed(s.handleLogSize))
	s.mux.HandleFunc("/api/v1/log/clear", s.authed(s.handleLogClear))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		if tokenStr == auth {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil {
			if s.log != nil {
				s.log.WithError(err).Warn("admin api: rejected token")
			}
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats())
}

func (s *Server) handleRelayMode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"mode": s.relayMode()})
}

func (s *Server) handleLogDump(w http.ResponseWriter, r *http.Request) {
	w.Write(s.opLog.Dump())
}

func (s *Server) handleLogSize(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]int{"size": s.opLog.Size()})
}

func (s *Server) handleLogClear(w http.ResponseWriter, r *http.Request) {
	s.opLog.Clear()
	w.WriteHeader(http.StatusOK)
}
