package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/channel"
)

// wsClient is one member's socket plus its buffered outbound queue. A full
// queue fails trySend instead of blocking the broadcaster.
type wsClient struct {
	token string
	conn  *websocket.Conn
	send  chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSClient(token string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		token: token,
		conn:  conn,
		send:  make(chan []byte, 64),
	}
}

func (c *wsClient) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return channel.ErrBackpressure
	}
	return nil
}

func (c *wsClient) close() {
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

func (c *wsClient) writePump(ctx context.Context, pingPeriod time.Duration) {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "relay").Str("token", c.token).Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Err(err).Str("module", "relay").Str("token", c.token).Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "relay").Str("token", c.token).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump delivers inbound frames to onFrame until the socket dies.
func (c *wsClient) readPump(ctx context.Context, readLimit int64, onFrame func([]byte)) {
	defer func() {
		log.Info().Str("module", "relay").Str("token", c.token).Msg("readPump closing")
		c.close()
	}()

	if readLimit > 0 {
		c.conn.SetReadLimit(readLimit)
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "relay").Str("token", c.token).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "relay").Str("token", c.token).Msg("readPump read error")
				}
				return
			}
			onFrame(data)
		}
	}
}
