// Package domain contains entities without logic, just meta-data
package domain

type (
	ParticipantID string
	RoomName      string
)
