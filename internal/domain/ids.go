// Package domain contains entities without logic, just meta-data.
package domain

import "github.com/google/uuid"

// Distinct identifier types so a producer id can never be passed
// where a transport id is expected.
type (
	RoomID      string
	PeerID      string
	UserID      string
	TransportID string
	ProducerID  string
	ConsumerID  string
)

// NewPeerID generates a fresh session-scoped peer identifier. A
// reconnecting user gets a new PeerID; UserID is the stable identity.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}
