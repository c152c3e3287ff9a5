package core

import (
	"sync"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

// PeerInfo is a read-only view of a peer for wire messages.
type PeerInfo struct {
	ID          domain.PeerID `json:"id"`
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
}

// Peer is one connected participant's server-side state within a room.
// The owning connection goroutine drives all mutations through the
// orchestrator; the maps are still guarded because a producer-close
// cascade started by another peer removes consumers from this one.
type Peer struct {
	ID       domain.PeerID
	Identity domain.Identity

	conn SignalConnection

	mu         sync.Mutex
	transports map[domain.TransportID]media.Transport
	producers  map[domain.ProducerID]media.Producer
	consumers  map[domain.ConsumerID]media.Consumer
}

func NewPeer(identity domain.Identity, conn SignalConnection) *Peer {
	return &Peer{
		ID:         domain.NewPeerID(),
		Identity:   identity,
		conn:       conn,
		transports: make(map[domain.TransportID]media.Transport),
		producers:  make(map[domain.ProducerID]media.Producer),
		consumers:  make(map[domain.ConsumerID]media.Consumer),
	}
}

func (p *Peer) Conn() SignalConnection {
	return p.conn
}

func (p *Peer) Info() PeerInfo {
	return PeerInfo{
		ID:          p.ID,
		UserID:      p.Identity.UserID,
		DisplayName: p.Identity.DisplayName,
	}
}

func (p *Peer) AddTransport(t media.Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transports[t.ID()] = t
}

func (p *Peer) Transport(id domain.TransportID) (media.Transport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.transports[id]
	return t, ok
}

// RecvTransport returns the peer's receiving transport. At most one
// recv transport is allowed per peer; the orchestrator rejects a
// second create request.
func (p *Peer) RecvTransport() (media.Transport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.transports {
		if t.Direction() == media.DirectionRecv {
			return t, true
		}
	}
	return nil, false
}

func (p *Peer) AddProducer(prod media.Producer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.producers[prod.ID()] = prod
}

func (p *Peer) Producer(id domain.ProducerID) (media.Producer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.producers[id]
	return prod, ok
}

func (p *Peer) RemoveProducer(id domain.ProducerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.producers, id)
}

func (p *Peer) Producers() []media.Producer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]media.Producer, 0, len(p.producers))
	for _, prod := range p.producers {
		out = append(out, prod)
	}
	return out
}

func (p *Peer) AddConsumer(c media.Consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumers[c.ID()] = c
}

func (p *Peer) Consumer(id domain.ConsumerID) (media.Consumer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.consumers[id]
	return c, ok
}

func (p *Peer) RemoveConsumer(id domain.ConsumerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.consumers, id)
}

// TakeConsumersOf removes and returns every consumer referencing the
// given producer. Used by the producer-close cascade.
func (p *Peer) TakeConsumersOf(producerID domain.ProducerID) []media.Consumer {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []media.Consumer
	for id, c := range p.consumers {
		if c.ProducerID() == producerID {
			out = append(out, c)
			delete(p.consumers, id)
		}
	}
	return out
}

// TakeAll empties the peer's resource maps and returns the owned
// resources for teardown. Transports are returned last so callers can
// close streams before their paths.
func (p *Peer) TakeAll() (producers []media.Producer, consumers []media.Consumer, transports []media.Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, prod := range p.producers {
		producers = append(producers, prod)
		delete(p.producers, id)
	}
	for id, c := range p.consumers {
		consumers = append(consumers, c)
		delete(p.consumers, id)
	}
	for id, t := range p.transports {
		transports = append(transports, t)
		delete(p.transports, id)
	}
	return producers, consumers, transports
}
