// Package session holds the distributed aux state: who holds the aux, what
// is loaded, whether it is playing, plus the catch-up and reaction flows.
// Every participant derives its own copy of this state from the same
// broadcast stream; there is no authoritative store and consistency is
// eventual, best-effort.
package session

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/domain"
	"github.com/auxroom/auxcast/internal/wire"
)

var (
	ErrNotHolder = errors.New("session: not the aux holder")
	ErrNotIdle   = errors.New("session: aux already taken")
	ErrNoItem    = errors.New("session: no current item")
)

type Role int

const (
	RoleIdle Role = iota
	RoleHolder
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleHolder:
		return "holder"
	case RoleFollower:
		return "follower"
	default:
		return "idle"
	}
}

// AuxState is one participant's local view of the shared playback state.
type AuxState struct {
	Current *domain.Item
	Holder  domain.ParticipantID
	Playing bool
}

// PlaybackSink is the local player the machine drives. Implementations must
// tolerate redundant calls; the protocol makes no dedup promises.
type PlaybackSink interface {
	Load(item *domain.Item)
	SetPlaying(playing bool)
	Stop()
}

// NopSink discards everything; used when no local player is attached.
type NopSink struct{}

func (NopSink) Load(*domain.Item) {}
func (NopSink) SetPlaying(bool)   {}
func (NopSink) Stop()             {}

// machine applies ownership and playback transitions to the local state.
// Local holder transitions return the control message to broadcast; remote
// applications never produce one, which is what keeps control messages from
// echoing back into the room.
type machine struct {
	self domain.ParticipantID
	role Role
	aux  AuxState
	sink PlaybackSink
}

func newMachine(self domain.ParticipantID, sink PlaybackSink) *machine {
	if sink == nil {
		sink = NopSink{}
	}
	return &machine{self: self, sink: sink}
}

// TakeControl claims the aux locally without an item. Only valid from Idle;
// nothing is broadcast until an item is actually shared.
func (m *machine) TakeControl() error {
	if m.role != RoleIdle {
		return ErrNotIdle
	}
	m.role = RoleHolder
	m.aux = AuxState{Holder: m.self}
	return nil
}

// ShareItem makes the local participant the holder of item, paused. Valid
// from any state; two participants sharing concurrently each believe they
// hold the aux until the other's broadcast lands (last broadcast wins at
// every receiver, accepted behavior).
func (m *machine) ShareItem(item *domain.Item) {
	m.role = RoleHolder
	m.aux = AuxState{Current: item, Holder: m.self}
	m.sink.Load(item)
}

// SetPlaying toggles playback for the holder and returns the control
// message to broadcast.
func (m *machine) SetPlaying(playing bool) (wire.Control, error) {
	if m.role != RoleHolder {
		return wire.Control{}, ErrNotHolder
	}
	if m.aux.Current == nil {
		return wire.Control{}, ErrNoItem
	}
	m.aux.Playing = playing
	m.sink.SetPlaying(playing)
	action := wire.ActionPause
	if playing {
		action = wire.ActionPlay
	}
	return wire.Control{Action: action}, nil
}

// Stop clears the shared item and releases the aux, returning the stop
// message to broadcast. Every participant returns to Idle on receipt.
func (m *machine) Stop() (wire.Control, error) {
	if m.role != RoleHolder {
		return wire.Control{}, ErrNotHolder
	}
	m.role = RoleIdle
	m.aux = AuxState{}
	m.sink.Stop()
	return wire.Control{Action: wire.ActionStop}, nil
}

// ApplyShare installs a remotely shared item. The local view becomes a
// follower of whoever the item names as its sharer.
func (m *machine) ApplyShare(item *domain.Item) {
	if m.role == RoleHolder {
		log.Debug().Str("module", "session").Str("holder", string(item.AddedBy)).Msg("aux taken over by remote share")
	}
	m.role = RoleFollower
	m.aux = AuxState{Current: item, Holder: item.AddedBy}
	m.sink.Load(item)
}

// ApplyControl applies a remote playback transition to the local sink. A
// control that references no current item is ignored silently. Nothing is
// ever re-broadcast from here.
func (m *machine) ApplyControl(c wire.Control) {
	if m.aux.Current == nil {
		log.Debug().Str("module", "session").Str("action", string(c.Action)).Msg("control without current item ignored")
		return
	}
	switch c.Action {
	case wire.ActionPlay:
		m.aux.Playing = true
		m.sink.SetPlaying(true)
	case wire.ActionPause:
		m.aux.Playing = false
		m.sink.SetPlaying(false)
	case wire.ActionStop:
		m.role = RoleIdle
		m.aux = AuxState{}
		m.sink.Stop()
	default:
		log.Warn().Str("module", "session").Str("action", string(c.Action)).Msg("unknown control action")
	}
}
