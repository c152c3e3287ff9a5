package core

import (
	"errors"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

var ErrRoomFull = errors.New("room full")

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropMessage
	KickPeer
)

// Policy hooks room admission and slow-subscriber handling into the
// orchestrator without the core deciding product rules itself.
type Policy interface {
	// Admit is consulted before a peer joins; a non-nil error rejects
	// the handshake.
	Admit(room *Room, identity domain.Identity) error
	OnBackpressure(room *Room, peer *Peer) BackpressureAction
}

// SimplePolicy caps room size and kicks peers that cannot keep up with
// notifications.
type SimplePolicy struct {
	MaxPeers int
}

func (p SimplePolicy) Admit(room *Room, _ domain.Identity) error {
	if p.MaxPeers > 0 && room.PeerCount() >= p.MaxPeers {
		return ErrRoomFull
	}
	return nil
}

func (SimplePolicy) OnBackpressure(_ *Room, _ *Peer) BackpressureAction {
	return KickPeer
}
