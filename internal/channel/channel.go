// Package channel defines the group-channel port the session is built on:
// a reliable, ordered-per-sender broadcast to all current room members, plus
// join/leave notifications. The call platform behind it is not our concern.
package channel

import (
	"context"
	"errors"

	"github.com/auxroom/auxcast/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type EventKind int

const (
	EventMessage EventKind = iota
	EventPeerJoined
	EventPeerLeft
)

// Event is one inbound occurrence on the channel. Data is set for messages,
// Peer for join/leave notifications.
type Event struct {
	Kind EventKind
	Peer domain.ParticipantID
	Data []byte
}

// Channel is owned by whoever opened it; the owner must Close it.
// Events is closed when the channel dies.
type Channel interface {
	Broadcast(ctx context.Context, data []byte) error
	Events() <-chan Event
	Close()
}
