package domain

import "errors"

const MaxDisplayNameLen = 120

var (
	ErrPayloadEmpty       = errors.New("payload empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

type ItemKind string

const (
	KindAudio         ItemKind = "audio"
	KindEmbeddedVideo ItemKind = "embedded_video"
)

// Item is one shareable unit: a large text-encoded blob or a short external
// reference. Immutable once constructed.
type Item struct {
	Payload     string        `json:"payload"`
	Kind        ItemKind      `json:"kind"`
	DisplayName string        `json:"display_name"`
	ExternalID  string        `json:"external_id,omitempty"`
	AddedBy     ParticipantID `json:"added_by"`
}

// NewItem avoids raw literals elsewhere and keeps validation in one place.
func NewItem(payload string, kind ItemKind, displayName string, addedBy ParticipantID) (*Item, error) {
	if len(payload) == 0 {
		return nil, ErrPayloadEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &Item{
		Payload:     payload,
		Kind:        kind,
		DisplayName: displayName,
		AddedBy:     addedBy,
	}, nil
}
