package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second    // time allowed to read the next pong from the client
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4096
	sendQueueSize  = 64
)

// Client is the server's end of one player connection: the read pump feeds
// the room, the write pump drains a bounded queue. Both exit when Close fires.
type Client struct {
	PlayerID uint16
	room     *Room
	conn     *websocket.Conn
	log      *zap.SugaredLogger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded socket already bound to a reserved playerId.
func NewClient(playerID uint16, room *Room, conn *websocket.Conn, log *zap.SugaredLogger) *Client {
	return &Client{
		PlayerID: playerID,
		room:     room,
		conn:     conn,
		log:      log.With("player", playerID),
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues an encoded message, dropping it when the queue is full or the
// connection is gone. Reports whether the message was queued.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close tears the connection down; safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump decodes inbound frames and routes them. The first message must be
// Hello; until it arrives the player does not exist in the room.
func (c *Client) readPump() {
	defer func() {
		c.room.unregister <- c
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	registered := false
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnw("read error", "err", err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// Protocol errors drop the single message, never the session.
			c.log.Warnw("dropping undecodable message", "err", err)
			continue
		}

		switch m := msg.(type) {
		case protocol.Hello:
			if registered {
				continue
			}
			if m.ProtocolVersion != protocol.Version {
				c.log.Warnw("hello with wrong protocol version", "got", m.ProtocolVersion)
				c.Send(protocol.Encode(protocol.ServerError{Code: protocol.ErrCodeUnknownPlayer}))
				return
			}
			registered = true
			c.room.register <- c

		case protocol.Ping:
			// Answered inline so RTT measures the network, not the tick.
			c.Send(protocol.Encode(protocol.Pong{OriginTimestamp: m.OriginTimestamp}))

		case protocol.Input, protocol.BuildRequest:
			if registered {
				c.room.Submit(c.PlayerID, msg)
			}

		default:
			c.log.Debugw("ignoring unexpected message from client", "tag", data[0])
		}
	}
}

// writePump drains the send queue onto the socket and keeps the websocket
// ping/pong heartbeat alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
