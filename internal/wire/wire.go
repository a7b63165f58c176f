// Package wire defines the JSON envelope exchanged over the group channel.
//
// Every message carries a "type" discriminator. Decode parses a frame once
// into a concrete variant; consumers dispatch with a type switch, so a new
// message type is a compile-time-visible change instead of a stringly one.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/auxroom/auxcast/internal/domain"
)

type Type string

const (
	TypeShare       Type = "share"
	TypeChunk       Type = "chunk"
	TypeRequestSync Type = "request_sync"
	TypeControl     Type = "control"
	TypeReaction    Type = "reaction"
)

// Message is one decoded variant of the protocol. The set is closed.
type Message interface {
	WireType() Type
}

// Meta travels with every chunk so a receiver can build the final Item
// without a separate announcement message.
type Meta struct {
	DisplayName string               `json:"display_name"`
	Kind        domain.ItemKind      `json:"kind"`
	AddedBy     domain.ParticipantID `json:"added_by"`
}

// Share carries an item whose payload fits a single frame.
type Share struct {
	Payload     string               `json:"payload"`
	Kind        domain.ItemKind      `json:"kind"`
	DisplayName string               `json:"display_name"`
	ExternalID  string               `json:"external_id,omitempty"`
	AddedBy     domain.ParticipantID `json:"added_by"`
}

// Chunk is one frame of a chunked transfer.
type Chunk struct {
	TransferID  string `json:"transfer_id"`
	Index       int    `json:"index"`
	TotalFrames int    `json:"total_frames"`
	Data        string `json:"data"`
	Meta        Meta   `json:"meta"`
}

// RequestSync asks the current holder to rebroadcast its state. No payload.
type RequestSync struct{}

type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
	ActionStop  Action = "stop"
)

// Control is a lightweight playback transition from the holder.
type Control struct {
	Action Action `json:"action"`
}

// Reaction is a fire-and-forget emoji event.
type Reaction struct {
	Symbol string               `json:"symbol"`
	Sender domain.ParticipantID `json:"sender"`
}

func (Share) WireType() Type       { return TypeShare }
func (Chunk) WireType() Type       { return TypeChunk }
func (RequestSync) WireType() Type { return TypeRequestSync }
func (Control) WireType() Type     { return TypeControl }
func (Reaction) WireType() Type    { return TypeReaction }

// Item builds the domain entity a direct share describes.
func (s Share) Item() *domain.Item {
	return &domain.Item{
		Payload:     s.Payload,
		Kind:        s.Kind,
		DisplayName: s.DisplayName,
		ExternalID:  s.ExternalID,
		AddedBy:     s.AddedBy,
	}
}

// Encode wraps m in the flat envelope peers expect.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case Share:
		return json.Marshal(struct {
			Type Type `json:"type"`
			Share
		}{TypeShare, v})
	case Chunk:
		return json.Marshal(struct {
			Type Type `json:"type"`
			Chunk
		}{TypeChunk, v})
	case RequestSync:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{TypeRequestSync})
	case Control:
		return json.Marshal(struct {
			Type Type `json:"type"`
			Control
		}{TypeControl, v})
	case Reaction:
		return json.Marshal(struct {
			Type Type `json:"type"`
			Reaction
		}{TypeReaction, v})
	default:
		return nil, fmt.Errorf("wire: unencodable message %T", m)
	}
}

// Decode parses one inbound frame into its variant. A frame that does not
// parse, or whose type is unknown, is reported as an error and must be
// dropped by the caller without touching any other state.
func Decode(data []byte) (Message, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: bad envelope: %w", err)
	}
	switch env.Type {
	case TypeShare:
		var m Share
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("wire: bad share: %w", err)
		}
		return m, nil
	case TypeChunk:
		var m Chunk
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("wire: bad chunk: %w", err)
		}
		return m, nil
	case TypeRequestSync:
		return RequestSync{}, nil
	case TypeControl:
		var m Control
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("wire: bad control: %w", err)
		}
		return m, nil
	case TypeReaction:
		var m Reaction
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("wire: bad reaction: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("wire: unknown message type %q", env.Type)
	}
}
