// Package relay is the reference realization of the group channel: a room
// server that fans every member's frames out to all other members, in the
// order each sender produced them. It never inspects protocol payloads.
package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/domain"
)

// conn is the transport endpoint of one room member. Closed by the handler
// that created it, or by the room when the member is kicked.
type conn interface {
	trySend(data []byte) error
	close()
}

type publishResult struct {
	sentTo  int
	dropped []string
}

// room is a threadsafe fan-out set keyed by client token.
type room struct {
	name    domain.RoomName
	mu      sync.RWMutex
	members map[string]conn
}

func newRoom(name domain.RoomName) *room {
	return &room{name: name, members: make(map[string]conn)}
}

func (r *room) add(token string, c conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[token] = c
	log.Info().Str("module", "relay.room").Str("room", string(r.name)).Str("token", token).Msg("member added")
}

func (r *room) remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, token)
	log.Info().Str("module", "relay.room").Str("room", string(r.name)).Str("token", token).Msg("member removed")
}

// kick removes a member and closes its endpoint so its pumps terminate.
func (r *room) kick(token string) {
	r.mu.Lock()
	c, ok := r.members[token]
	delete(r.members, token)
	r.mu.Unlock()
	if ok {
		c.close()
	}
	log.Warn().Str("module", "relay.room").Str("room", string(r.name)).Str("token", token).Msg("member kicked")
}

func (r *room) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *room) tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.members))
	for tok := range r.members {
		out = append(out, tok)
	}
	return out
}

// broadcast fans data out to every member except the sender. Members whose
// send queue is full end up in dropped; the caller decides their fate.
func (r *room) broadcast(from string, data []byte) publishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := publishResult{}
	for tok, m := range r.members {
		if tok == from {
			continue
		}
		if err := m.trySend(data); err != nil {
			res.dropped = append(res.dropped, tok)
			continue
		}
		res.sentTo++
	}
	log.Debug().Str("module", "relay.room").Str("from", from).Int("sent_to", res.sentTo).Int("dropped", len(res.dropped)).Msg("broadcast result")
	return res
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

// Rooms is the registry of live rooms.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.RoomName]*room)}
}

func (f *Rooms) getOrCreate(name domain.RoomName) *room {
	f.mu.RLock()
	r, ok := f.rooms[name]
	f.mu.RUnlock()
	if ok {
		return r
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok = f.rooms[name]; ok {
		return r
	}
	r = newRoom(name)
	f.rooms[name] = r
	return r
}

func (f *Rooms) List() []RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]RoomInfo, 0, len(f.rooms))
	for name, r := range f.rooms {
		out = append(out, RoomInfo{Name: name, MemberCount: r.count()})
	}
	return out
}

func (f *Rooms) Stop(name domain.RoomName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, name)
}
