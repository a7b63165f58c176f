package channel

// Relay-injected frames use the same flat type-discriminated shape as
// protocol messages but belong to the transport, not the protocol. The ws
// adapter consumes them into Events; everything else passes through opaque.
const (
	SysRoomState  = "room_state"
	SysPeerJoined = "peer_joined"
	SysPeerLeft   = "peer_left"
)

// SysEnvelope is the relay's own notification frame.
type SysEnvelope struct {
	Type  string   `json:"type"`
	Peer  string   `json:"peer,omitempty"`
	Peers []string `json:"peers,omitempty"`
	Count int      `json:"count,omitempty"`
}
