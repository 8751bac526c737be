package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"careflow-backend/application/services"
	"careflow-backend/pkg/common"
)

// Server upgrades HTTP requests into canvas sessions
type Server struct {
	hub        *Hub
	reconciler *services.CanvasReconciler
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewServer creates the upgrade handler
func NewServer(hub *Hub, reconciler *services.CanvasReconciler, allowedOrigins []string, logger *zap.Logger) *Server {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[origin] = true
	}

	return &Server{
		hub:        hub,
		reconciler: reconciler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(originSet) == 0 {
					return true
				}
				return originSet[r.Header.Get("Origin")]
			},
		},
		logger: logger,
	}
}

// ServeHTTP implements http.Handler. Auth middleware runs before this, so
// the user id is already on the context.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !s.hub.CanAccept(userID) {
		s.logger.Warn("refusing connection over per-user cap",
			zap.String("user_id", userID))
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(userID, s.hub, conn, s.reconciler, s.logger)
	client.Start()
}
