package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/domain"
)

const (
	sendQueueLen  = 64
	eventQueueLen = 256
	writeDeadline = 5 * time.Second
)

// WS is the websocket realization of Channel, speaking to a relay room
// endpoint. One writer goroutine drains the send queue; one reader feeds
// the event queue.
type WS struct {
	conn   *websocket.Conn
	send   chan []byte
	events chan Event

	mu     sync.RWMutex
	closed bool
}

// Dial connects to a relay room endpoint and starts the pumps. The channel
// stays usable until the socket dies or Close is called.
func Dial(ctx context.Context, url string) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &WS{
		conn:   conn,
		send:   make(chan []byte, sendQueueLen),
		events: make(chan Event, eventQueueLen),
	}
	go c.writePump()
	go c.readPump()
	log.Info().Str("module", "channel.ws").Str("url", url).Msg("connected")
	return c, nil
}

func (c *WS) Broadcast(ctx context.Context, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("channel closed")
	}
	select {
	case c.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBackpressure
	}
}

func (c *WS) Events() <-chan Event { return c.events }

func (c *WS) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *WS) writePump() {
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
			log.Error().Err(err).Str("module", "channel.ws").Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "channel.ws").Msg("writePump write error")
			return
		}
	}
}

func (c *WS) readPump() {
	defer func() {
		log.Info().Str("module", "channel.ws").Msg("readPump closing")
		c.Close()
		close(c.events)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("module", "channel.ws").Msg("readPump read error")
			}
			return
		}
		c.deliver(data)
	}
}

// deliver classifies one inbound frame. Relay notifications become typed
// events; every other frame is passed through opaque for the session to
// decode. A full event queue drops the frame rather than stalling the pump.
func (c *WS) deliver(data []byte) {
	ev := Event{Kind: EventMessage, Data: data}

	var sys SysEnvelope
	if err := json.Unmarshal(data, &sys); err == nil {
		switch sys.Type {
		case SysPeerJoined:
			ev = Event{Kind: EventPeerJoined, Peer: domain.ParticipantID(sys.Peer)}
		case SysPeerLeft:
			ev = Event{Kind: EventPeerLeft, Peer: domain.ParticipantID(sys.Peer)}
		case SysRoomState:
			log.Info().Str("module", "channel.ws").Int("count", sys.Count).Msg("room state")
			return
		}
	}

	select {
	case c.events <- ev:
	default:
		log.Warn().Str("module", "channel.ws").Msg("event queue full, frame dropped")
	}
}
