package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The game is served from arbitrary origins during development.
		return true
	},
}

// JoinRequest is the body of the POST /join bootstrap call.
type JoinRequest struct {
	ProtocolVersion uint8 `json:"protocolVersion"`
}

// JoinResponse carries the identity and credential for the websocket dial.
type JoinResponse struct {
	RoomID   string `json:"roomId"`
	PlayerID uint16 `json:"playerId"`
	Token    string `json:"token"`
}

type joinError struct {
	Error string `json:"error"`
}

// Server wires the join bootstrap, the websocket endpoint, and the monitoring
// handlers over the room manager.
type Server struct {
	cfg      Config
	log      *zap.SugaredLogger
	rooms    *RoomManager
	sessions *SessionRegistry
}

// NewServer creates the server around a fresh room manager.
func NewServer(cfg Config, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		rooms:    NewRoomManager(cfg, log),
		sessions: NewSessionRegistry(),
	}
}

// Rooms exposes the room manager, mainly for shutdown.
func (s *Server) Rooms() *RoomManager { return s.rooms }

// Handler returns the full HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/join", s.HandleJoin)
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleJoin runs the request/response bootstrap that precedes the persistent
// connection: version check, capacity check, identity + token issue.
func (s *Server) HandleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, joinError{Error: "invalid json"})
		return
	}
	if req.ProtocolVersion != protocol.Version {
		writeJSON(w, http.StatusUpgradeRequired, joinError{Error: "protocol version mismatch"})
		return
	}

	room := s.rooms.GetOrCreateRoom(s.cfg.DefaultRoomID)
	playerID, err := room.Reserve(s.cfg.JoinTTL)
	if err != nil {
		writeJSON(w, http.StatusConflict, joinError{Error: "room is full"})
		return
	}

	token := s.sessions.Issue(room.ID, playerID, s.cfg.JoinTTL)
	s.log.Infow("issued join", "room", room.ID, "player", playerID)
	writeJSON(w, http.StatusOK, JoinResponse{
		RoomID:   room.ID,
		PlayerID: playerID,
		Token:    token,
	})
}

// HandleWS upgrades the persistent connection. The token from /join is the
// only credential; it binds the socket to the already-issued identity.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	roomID, playerID, ok := s.sessions.Consume(token)
	if !ok {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	room := s.rooms.GetRoom(roomID)
	if room == nil {
		http.Error(w, "room gone", http.StatusGone)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("upgrade failed", "err", err)
		return
	}

	NewClient(playerID, room, conn, s.log).Start()
}

// HandleMetrics reports per-room counters as JSON.
// GET /metrics?room=LOBBY
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = s.cfg.DefaultRoomID
	}
	room := s.rooms.GetRoom(roomID)
	if room == nil {
		http.Error(w, "no such room", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":    roomID,
		"metrics": room.Metrics().Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
