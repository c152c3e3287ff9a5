package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

// ProducerEntry describes one producer of a room for get-producers.
type ProducerEntry struct {
	PeerID      domain.PeerID     `json:"peerId"`
	UserID      domain.UserID     `json:"userId"`
	DisplayName string            `json:"displayName"`
	ProducerID  domain.ProducerID `json:"producerId"`
	Kind        media.Kind        `json:"kind"`
}

// Room is one call's namespace: a router fixed for the room's lifetime
// plus the set of peer sessions.
type Room struct {
	ID     domain.RoomID
	router media.Router

	mu     sync.RWMutex
	peers  map[domain.PeerID]*Peer
	closed bool
}

func NewRoom(id domain.RoomID, router media.Router) *Room {
	return &Room{
		ID:     id,
		router: router,
		peers:  make(map[domain.PeerID]*Peer),
	}
}

func (r *Room) Router() media.Router {
	return r.router
}

// AddPeer registers the peer and reports whether the room accepted it.
// A room that has been torn down refuses; the caller must resolve a
// fresh room from the registry.
func (r *Room) AddPeer(p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.peers[p.ID] = p
	log.Info().Str("module", "core.room").Str("room", string(r.ID)).Str("peer", string(p.ID)).Str("user", string(p.Identity.UserID)).Msg("peer added")
	return true
}

// RemovePeer removes the peer and reports how many remain. The caller
// tears the room down when remaining hits zero.
func (r *Room) RemovePeer(id domain.PeerID) (remaining int, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[id]; !ok {
		return len(r.peers), false
	}
	delete(r.peers, id)
	log.Info().Str("module", "core.room").Str("room", string(r.ID)).Str("peer", string(id)).Msg("peer removed")
	return len(r.peers), true
}

func (r *Room) Peer(id domain.PeerID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

func (r *Room) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Peers returns a snapshot; iteration over it happens outside the lock.
func (r *Room) Peers() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// PeersInfo lists present peers excluding the given one.
func (r *Room) PeersInfo(exclude domain.PeerID) []PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerInfo, 0, len(r.peers))
	for id, p := range r.peers {
		if id == exclude {
			continue
		}
		out = append(out, p.Info())
	}
	return out
}

// FindProducer locates a producer anywhere in the room together with
// its owning peer.
func (r *Room) FindProducer(id domain.ProducerID) (*Peer, media.Producer, bool) {
	for _, p := range r.Peers() {
		if prod, ok := p.Producer(id); ok {
			return p, prod, true
		}
	}
	return nil, nil, false
}

// ProducerEntries enumerates the producers of all peers except the
// excluded one.
func (r *Room) ProducerEntries(exclude domain.PeerID) []ProducerEntry {
	entries := make([]ProducerEntry, 0)
	for _, p := range r.Peers() {
		if p.ID == exclude {
			continue
		}
		info := p.Info()
		for _, prod := range p.Producers() {
			entries = append(entries, ProducerEntry{
				PeerID:      info.ID,
				UserID:      info.UserID,
				DisplayName: info.DisplayName,
				ProducerID:  prod.ID(),
				Kind:        prod.Kind(),
			})
		}
	}
	return entries
}

// markClosed flips the room into its terminal state exactly once.
// Returns false if already closed.
func (r *Room) markClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.closed = true
	return true
}

// closeIfEmpty marks the room closed only while its peer map is empty,
// so a peer registered between the emptiness observation and the
// teardown keeps the room alive. Returns whether this call closed it.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.peers) > 0 {
		return false
	}
	r.closed = true
	return true
}
