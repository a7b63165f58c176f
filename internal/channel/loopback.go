package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/auxroom/auxcast/internal/domain"
)

// Hub is an in-process group channel: every member's broadcast is delivered,
// in send order, to every other member. It mirrors the relay's fan-out
// semantics without a socket and backs the package tests.
type Hub struct {
	mu      sync.Mutex
	members map[domain.ParticipantID]*Loopback
}

func NewHub() *Hub {
	return &Hub{members: make(map[domain.ParticipantID]*Loopback)}
}

// Join adds a member and announces it to everyone already present.
func (h *Hub) Join(id domain.ParticipantID) *Loopback {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := &Loopback{
		hub:    h,
		id:     id,
		events: make(chan Event, eventQueueLen),
	}
	for _, other := range h.members {
		other.push(Event{Kind: EventPeerJoined, Peer: id})
	}
	h.members[id] = m
	return m
}

func (h *Hub) leave(id domain.ParticipantID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.members[id]
	if !ok {
		return
	}
	delete(h.members, id)
	close(m.events)
	for _, other := range h.members {
		other.push(Event{Kind: EventPeerLeft, Peer: id})
	}
}

func (h *Hub) broadcast(from domain.ParticipantID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, m := range h.members {
		if id == from {
			continue
		}
		m.push(Event{Kind: EventMessage, Data: data})
	}
}

// Loopback is one member's view of a Hub.
type Loopback struct {
	hub    *Hub
	id     domain.ParticipantID
	events chan Event

	mu     sync.Mutex
	closed bool
}

func (l *Loopback) Broadcast(_ context.Context, data []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("channel closed")
	}
	l.mu.Unlock()
	// Copy so a caller reusing its buffer cannot corrupt deliveries.
	buf := make([]byte, len(data))
	copy(buf, data)
	l.hub.broadcast(l.id, buf)
	return nil
}

func (l *Loopback) Events() <-chan Event { return l.events }

func (l *Loopback) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.hub.leave(l.id)
}

func (l *Loopback) push(ev Event) {
	select {
	case l.events <- ev:
	default:
	}
}
