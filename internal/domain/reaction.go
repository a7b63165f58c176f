package domain

// Reaction is an ephemeral emoji event. It lives only for a fixed display
// window on each participant's screen and is never persisted.
type Reaction struct {
	ID      string        `json:"id"`
	Symbol  string        `json:"symbol"`
	OriginX float64       `json:"origin_x"`
	Sender  ParticipantID `json:"sender"`
}
