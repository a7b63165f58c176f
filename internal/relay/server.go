package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/channel"
	"github.com/auxroom/auxcast/internal/config"
	"github.com/auxroom/auxcast/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts websocket members into rooms and fans their frames out.
type Server struct {
	Cfg     *config.Config
	Rooms   *Rooms
	Limiter *JoinLimiter
}

func NewServer(cfg *config.Config) *Server {
	return &Server{
		Cfg:     cfg,
		Rooms:   NewRooms(),
		Limiter: NewJoinLimiter(cfg.JoinLimit, cfg.JoinWindow),
	}
}

// HandleRoom upgrades the connection and runs the member until its socket
// dies. The joiner gets a roster snapshot; everyone else gets peer_joined
// now and peer_left when the socket goes away.
func (s *Server) HandleRoom(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	roomName := domain.RoomName(c.Param("room"))
	if roomName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room required"})
		return
	}
	if !s.Limiter.Allow(token) {
		log.Warn().Str("module", "relay").Str("token", token).Msg("join rate limited")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many joins"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "relay").Str("token", token).Str("room", string(roomName)).Msg("member connecting")

	client := newWSClient(token, ws)
	room := s.Rooms.getOrCreate(roomName)

	// Roster snapshot before the joiner is added, so it excludes itself.
	s.sendSys(client, channel.SysEnvelope{
		Type:  channel.SysRoomState,
		Peers: room.tokens(),
		Count: room.count(),
	})

	room.add(token, client)
	s.broadcastSys(room, token, channel.SysEnvelope{Type: channel.SysPeerJoined, Peer: token})

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		client.writePump(ctx, s.Cfg.PingPeriod)
		cancel()
	}()
	go func() {
		client.readPump(ctx, s.Cfg.ReadLimit, func(data []byte) {
			s.onFrame(room, token, data)
		})
		cancel()
		room.remove(token)
		s.broadcastSys(room, token, channel.SysEnvelope{Type: channel.SysPeerLeft, Peer: token})
	}()
}

// onFrame relays one member frame. Slow members are kicked: a member that
// cannot drain chunked transfers would only fall further behind.
func (s *Server) onFrame(room *room, from string, data []byte) {
	res := room.broadcast(from, data)
	for _, tok := range res.dropped {
		room.kick(tok)
	}
}

func (s *Server) sendSys(c conn, env channel.SysEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("sendSys marshal")
		return
	}
	_ = c.trySend(data)
}

func (s *Server) broadcastSys(room *room, from string, env channel.SysEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("broadcastSys marshal")
		return
	}
	room.broadcast(from, data)
}
