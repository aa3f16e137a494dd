package server

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

// ErrRoomFull is returned by Reserve when connected plus pending players
// would exceed the room capacity.
var ErrRoomFull = errors.New("room is full")

// historyChunk caps how many placements ride in one replay BuildBatch.
const historyChunk = 256

// playerState is the authoritative simulation state of one player. Only the
// room's tick goroutine reads or writes it.
type playerState struct {
	id         uint16
	x, y, z    float32
	vy         float32
	yaw, pitch float32
	buttons    uint8
	flags      uint8
	lastSeq    uint16
}

type inboundCmd struct {
	playerID uint16
	msg      protocol.Message
}

type pendingBuild struct {
	playerID uint16
	req      protocol.BuildRequest
}

// Room runs one authoritative world. The tick goroutine is the only writer of
// simulation state; sockets feed it through channels and never touch it
// directly.
type Room struct {
	ID      string
	cfg     Config
	log     *zap.SugaredLogger
	metrics *RoomMetrics

	clients   map[uint16]*Client
	players   map[uint16]*playerState
	sequencer *BuildSequencer
	tick      uint32

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundCmd
	stop       chan struct{}

	// Reservation bookkeeping is the one piece shared with the HTTP join
	// handler, hence the mutex.
	mu           sync.Mutex
	nextPlayerID uint16
	reserved     map[uint16]time.Time
	population   int
}

// NewRoom creates a room; Run must be started on its own goroutine.
func NewRoom(id string, cfg Config, log *zap.SugaredLogger) *Room {
	return &Room{
		ID:           id,
		cfg:          cfg,
		log:          log.With("room", id),
		metrics:      &RoomMetrics{},
		clients:      make(map[uint16]*Client),
		players:      make(map[uint16]*playerState),
		sequencer:    NewBuildSequencer(cfg.GridExtent),
		register:     make(chan *Client),
		unregister:   make(chan *Client, 16),
		inbound:      make(chan inboundCmd, 256),
		stop:         make(chan struct{}),
		nextPlayerID: 1,
		reserved:     make(map[uint16]time.Time),
	}
}

// Reserve hands out the next playerId for a join that has passed the
// bootstrap. The slot is held until the socket shows up or the TTL lapses.
func (r *Room) Reserve(ttl time.Duration) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, expiry := range r.reserved {
		if now.After(expiry) {
			delete(r.reserved, id)
		}
	}

	if r.population+len(r.reserved) >= r.cfg.RoomCapacity {
		return 0, ErrRoomFull
	}

	id := r.nextPlayerID
	r.nextPlayerID++
	r.reserved[id] = now.Add(ttl)
	return id, nil
}

// Metrics exposes the room counters for the HTTP endpoint.
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// Run is the room's main loop: memberships, inbound commands, and the fixed
// tick cadence all land in one goroutine.
func (r *Room) Run() {
	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case client := <-r.register:
			r.handleRegister(client)

		case client := <-r.unregister:
			r.handleUnregister(client)

		case <-ticker.C:
			start := time.Now()
			r.step()
			r.metrics.AddTick(time.Since(start).Nanoseconds())

		case <-r.stop:
			for _, c := range r.clients {
				c.Close()
			}
			return
		}
	}
}

// Stop shuts the room down and closes every connection.
func (r *Room) Stop() {
	close(r.stop)
}

// Submit feeds a decoded client message into the tick loop. It never blocks:
// when the queue is full the command is dropped, the same trade the broadcast
// path makes, so a flooding client cannot stall the tick.
func (r *Room) Submit(playerID uint16, msg protocol.Message) {
	select {
	case r.inbound <- inboundCmd{playerID: playerID, msg: msg}:
	default:
		r.metrics.IncInputDropped()
	}
}

func (r *Room) handleRegister(client *Client) {
	r.mu.Lock()
	delete(r.reserved, client.PlayerID)
	r.mu.Unlock()

	if old, ok := r.clients[client.PlayerID]; ok {
		old.Close()
	} else {
		r.mu.Lock()
		r.population++
		r.mu.Unlock()
	}
	r.clients[client.PlayerID] = client
	r.players[client.PlayerID] = &playerState{id: client.PlayerID}

	r.log.Infow("player joined", "player", client.PlayerID)

	client.Send(protocol.Encode(protocol.Welcome{
		PlayerID: client.PlayerID,
		RoomID:   r.ID,
	}))
	// Replay the built world so a late joiner converges on the same grid.
	for _, batch := range r.sequencer.HistoryBatches(historyChunk) {
		client.Send(protocol.Encode(batch))
	}
	r.broadcast(protocol.Encode(protocol.PlayerCount{Count: uint8(len(r.clients))}))
}

func (r *Room) handleUnregister(client *Client) {
	current, ok := r.clients[client.PlayerID]
	if !ok || current != client {
		return // already replaced by a reconnect
	}
	delete(r.clients, client.PlayerID)
	delete(r.players, client.PlayerID)
	r.mu.Lock()
	r.population--
	r.mu.Unlock()
	client.Close()

	r.log.Infow("player left", "player", client.PlayerID)
	r.broadcast(protocol.Encode(protocol.PlayerCount{Count: uint8(len(r.clients))}))
}

// step advances the world one tick: drain commands, keep only the latest
// input per player, integrate movement, sequence builds, broadcast.
func (r *Room) step() {
	r.tick++

	latest := make(map[uint16]protocol.Input)
	var builds []pendingBuild

drain:
	for {
		select {
		case cmd := <-r.inbound:
			switch m := cmd.msg.(type) {
			case protocol.Input:
				if _, replaced := latest[cmd.playerID]; replaced {
					r.metrics.IncInputDropped()
				}
				latest[cmd.playerID] = m
			case protocol.BuildRequest:
				builds = append(builds, pendingBuild{playerID: cmd.playerID, req: m})
			}
		default:
			break drain
		}
	}

	for id, in := range latest {
		p, ok := r.players[id]
		if !ok {
			continue
		}
		p.buttons = in.Buttons
		p.yaw = in.Yaw
		p.pitch = in.Pitch
		p.lastSeq = in.Seq
		r.metrics.IncInputApplied()
	}

	dt := float32(r.cfg.TickInterval().Seconds())
	for _, p := range r.players {
		r.integrate(p, dt)
	}

	r.applyBuilds(builds)
	r.broadcastSnapshot()
}

// integrate moves one player by its held buttons. Movement input is a
// full-state sample, so held buttons keep acting until a new sample arrives.
func (r *Room) integrate(p *playerState, dt float32) {
	var fwd, strafe float32
	if p.buttons&protocol.ButtonForward != 0 {
		fwd++
	}
	if p.buttons&protocol.ButtonBack != 0 {
		fwd--
	}
	if p.buttons&protocol.ButtonRight != 0 {
		strafe++
	}
	if p.buttons&protocol.ButtonLeft != 0 {
		strafe--
	}

	speed := r.cfg.MoveSpeed
	if p.buttons&protocol.ButtonSprint != 0 {
		speed *= 1.6
	}
	if fwd != 0 && strafe != 0 {
		speed *= float32(math.Sqrt2 / 2)
	}

	sin := float32(math.Sin(float64(p.yaw)))
	cos := float32(math.Cos(float64(p.yaw)))
	p.x += (fwd*sin + strafe*cos) * speed * dt
	p.z += (fwd*cos - strafe*sin) * speed * dt

	if p.buttons&protocol.ButtonJump != 0 && p.y == 0 {
		p.vy = 5
	}
	if p.y > 0 || p.vy != 0 {
		p.vy -= 12 * dt
		p.y += p.vy * dt
		if p.y <= 0 {
			p.y = 0
			p.vy = 0
		}
	}

	ext := r.cfg.WorldExtent
	p.x = clamp(p.x, -ext, ext)
	p.z = clamp(p.z, -ext, ext)
}

// applyBuilds runs this tick's placement requests through the sequencer.
// Accepted placements carry contiguous fresh buildSeqs, so more than one
// packs into a single BuildBatch.
func (r *Room) applyBuilds(builds []pendingBuild) {
	var accepted []protocol.BuildSingle
	for _, b := range builds {
		cmd, errCode := r.sequencer.Accept(b.playerID, b.req)
		if errCode != 0 {
			r.metrics.IncBuildRejected()
			if c, ok := r.clients[b.playerID]; ok {
				c.Send(protocol.Encode(protocol.ServerError{Code: errCode}))
			}
			continue
		}
		r.metrics.IncBuildAccepted()
		accepted = append(accepted, cmd)
	}

	switch {
	case len(accepted) == 1:
		r.broadcast(protocol.Encode(accepted[0]))
	case len(accepted) > 1:
		batch := protocol.BuildBatch{
			BaseBuildSeq: accepted[0].BuildSeq,
			Placements:   make([]protocol.BuildPlacement, 0, len(accepted)),
		}
		for _, cmd := range accepted {
			batch.Placements = append(batch.Placements, cmd.BuildPlacement)
		}
		r.broadcast(protocol.Encode(batch))
	}
}

func (r *Room) broadcastSnapshot() {
	r.broadcast(protocol.Encode(r.buildSnapshot()))
	r.metrics.AddSnapshots(len(r.clients))
}

// buildSnapshot captures every player's pose, ordered by playerId so the
// wire form is deterministic.
func (r *Room) buildSnapshot() protocol.Snapshot {
	snap := protocol.Snapshot{
		Tick:    r.tick,
		Players: make([]protocol.PlayerState, 0, len(r.players)),
	}
	for _, p := range r.players {
		snap.Players = append(snap.Players, protocol.PlayerState{
			PlayerID: p.id,
			X:        p.x, Y: p.y, Z: p.z,
			Yaw: p.yaw, Pitch: p.pitch,
			Buttons: p.buttons,
			Flags:   p.flags,
		})
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		return snap.Players[i].PlayerID < snap.Players[j].PlayerID
	})
	return snap
}

// broadcast is best-effort per socket: a slow client loses messages, never
// the tick.
func (r *Room) broadcast(data []byte) {
	for _, c := range r.clients {
		if !c.Send(data) {
			r.metrics.IncSendDropped()
		}
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoomManager manages all rooms. Rooms are independent: each runs its own
// goroutine and shares nothing with its siblings.
type RoomManager struct {
	cfg   Config
	log   *zap.SugaredLogger
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewRoomManager creates a new room manager.
func NewRoomManager(cfg Config, log *zap.SugaredLogger) *RoomManager {
	return &RoomManager{
		cfg:   cfg,
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// GetOrCreateRoom gets an existing room or creates one and starts its loop.
func (rm *RoomManager) GetOrCreateRoom(roomID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[roomID]; ok {
		return room
	}

	room := NewRoom(roomID, rm.cfg, rm.log)
	rm.rooms[roomID] = room
	go room.Run()

	rm.log.Infow("created room", "room", roomID)
	return room
}

// GetRoom gets an existing room, or nil.
func (rm *RoomManager) GetRoom(roomID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[roomID]
}

// StopAll shuts every room down; used on server shutdown.
func (rm *RoomManager) StopAll() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, room := range rm.rooms {
		room.Stop()
	}
	rm.rooms = make(map[string]*Room)
}
