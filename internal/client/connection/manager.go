package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// ErrJoinRejected means the server refused the bootstrap: protocol version
// mismatch or a full room. The caller decides whether to offer a retry.
var ErrJoinRejected = errors.New("join rejected")

// ErrNotIdle means Join was called on a Manager that already ran its
// lifecycle. One Manager owns exactly one connection.
var ErrNotIdle = errors.New("connection manager already used")

const defaultPingInterval = 2 * time.Second

// Config tells the manager where the deployment lives. Both URLs are
// deployment-time values, never hardcoded per environment.
type Config struct {
	BootstrapURL string // base URL of the join endpoint, e.g. http://host:8080
	WSURL        string // websocket URL, e.g. ws://host:8080/ws
	PingInterval time.Duration
	HTTPClient   *http.Client
}

type joinResponse struct {
	RoomID   string `json:"roomId"`
	PlayerID uint16 `json:"playerId"`
	Token    string `json:"token"`
}

type joinErrorBody struct {
	Error string `json:"error"`
}

// Manager owns one duplex connection: the join handshake, message dispatch by
// kind, round-trip accounting, and teardown. StatusDisconnected is terminal;
// reconnecting means constructing a fresh Manager and joining again.
type Manager struct {
	cfg   Config
	log   *zap.SugaredLogger
	state *State

	mu            sync.RWMutex
	eventCallback func(Event)
	conn          *websocket.Conn

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates an idle manager. A nil logger is replaced with a no-op
// one so library consumers are not forced to configure logging.
func NewManager(cfg Config, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Manager{
		cfg:   cfg,
		log:   log,
		state: NewState(),
		done:  make(chan struct{}),
	}
}

// OnEvent sets the callback for connection events. Events fire from the read
// goroutine, one at a time; handlers run without extra locking, matching the
// single-logical-thread model of the client.
func (m *Manager) OnEvent(callback func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCallback = callback
}

// Status reports the observable connection status.
func (m *Manager) Status() Status { return m.state.Status() }

// Session reports the identity issued at join.
func (m *Manager) Session() Session { return m.state.Session() }

// RTT reports the latest round-trip estimate.
func (m *Manager) RTT() time.Duration { return m.state.RTT() }

// Join performs the request/response bootstrap, opens the persistent
// connection, and sends Hello so the server can bind the socket to the issued
// identity. The status observable flips to connected when Welcome arrives.
func (m *Manager) Join(ctx context.Context) (Session, error) {
	if m.state.Status() != StatusIdle {
		return Session{}, ErrNotIdle
	}
	m.setStatus(StatusConnecting)

	session, err := m.bootstrap(ctx)
	if err != nil {
		m.setStatus(StatusDisconnected)
		return Session{}, err
	}
	m.state.setSession(session)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, m.cfg.WSURL+"?token="+session.Token, nil)
	if err != nil {
		m.setStatus(StatusDisconnected)
		return Session{}, fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	if err := m.write(protocol.Encode(protocol.Hello{
		ProtocolVersion: protocol.Version,
		PlayerID:        session.PlayerID,
	})); err != nil {
		m.teardown()
		return Session{}, fmt.Errorf("hello: %w", err)
	}

	go m.readPump()
	go m.pingLoop()

	return session, nil
}

func (m *Manager) bootstrap(ctx context.Context) (Session, error) {
	body, _ := json.Marshal(map[string]uint8{"protocolVersion": protocol.Version})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BootstrapURL+"/join", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("bootstrap: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("bootstrap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body joinErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		return Session{}, fmt.Errorf("%w: %s", ErrJoinRejected, body.Error)
	}

	var join joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		return Session{}, fmt.Errorf("bootstrap response: %w", err)
	}
	return Session{RoomID: join.RoomID, PlayerID: join.PlayerID, Token: join.Token}, nil
}

// Send encodes and writes a message. It silently no-ops unless the connection
// is in the open state, so call sites never need to guard against teardown
// races.
func (m *Manager) Send(msg protocol.Message) {
	if m.state.Status() != StatusConnected {
		return
	}
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil {
		return
	}
	if err := m.write(protocol.Encode(msg)); err != nil {
		m.log.Debugw("send failed", "err", err)
	}
}

// Disconnect closes the connection. The manager ends up StatusDisconnected
// and cannot be reused.
func (m *Manager) Disconnect() {
	m.teardown()
}

func (m *Manager) write(data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil {
		return errors.New("no connection")
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (m *Manager) readPump() {
	defer m.teardown()

	for {
		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Warnw("connection read error", "err", err)
			}
			return
		}
		m.handleMessage(data)
	}
}

// handleMessage decodes one frame and dispatches it to exactly one event. A
// message that fails to decode is logged and dropped; the connection stays
// usable.
func (m *Manager) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		m.log.Warnw("dropping undecodable message", "err", err)
		return
	}

	switch v := msg.(type) {
	case protocol.Welcome:
		m.state.setSession(Session{
			RoomID:   v.RoomID,
			PlayerID: v.PlayerID,
			Token:    m.state.Session().Token,
		})
		m.setStatus(StatusConnected)
		m.emit(WelcomeEvent{RoomID: v.RoomID, PlayerID: v.PlayerID})

	case protocol.PlayerCount:
		m.emit(PlayerCountEvent{Count: v.Count})

	case protocol.Snapshot:
		m.emit(SnapshotEvent{Snapshot: v})

	case protocol.BuildSingle:
		m.emit(BuildEvent{
			BaseBuildSeq: v.BuildSeq,
			Placements:   []protocol.BuildPlacement{v.BuildPlacement},
		})

	case protocol.BuildBatch:
		m.emit(BuildEvent{BaseBuildSeq: v.BaseBuildSeq, Placements: v.Placements})

	case protocol.ServerError:
		m.emit(ServerErrorEvent{Code: v.Code})

	case protocol.Pong:
		rtt := rttFromOrigin(v.OriginTimestamp)
		m.state.setRTT(rtt)
		m.emit(PongEvent{RTT: rtt})

	default:
		// Client-bound kinds only; anything else is a server bug, not ours.
		m.log.Debugw("ignoring unexpected message", "kind", fmt.Sprintf("%T", msg))
	}
}

func (m *Manager) pingLoop() {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = m.write(protocol.Encode(protocol.Ping{OriginTimestamp: nowMillis()}))
		case <-m.done:
			return
		}
	}
}

func (m *Manager) teardown() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		if m.conn != nil {
			m.conn.Close()
		}
		m.mu.Unlock()
		m.setStatus(StatusDisconnected)
	})
}

func (m *Manager) setStatus(status Status) {
	if m.state.Status() == status {
		return
	}
	m.state.setStatus(status)
	m.emit(StatusEvent{Status: status})
}

func (m *Manager) emit(event Event) {
	m.mu.RLock()
	callback := m.eventCallback
	m.mu.RUnlock()
	if callback != nil {
		callback(event)
	}
}

// Timestamps ride the wire as the low 32 bits of unix milliseconds; uint32
// subtraction stays correct across the wrap.
func nowMillis() uint32 {
	return uint32(time.Now().UnixMilli())
}

func rttFromOrigin(origin uint32) time.Duration {
	return time.Duration(nowMillis()-origin) * time.Millisecond
}
