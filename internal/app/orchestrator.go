// Package app coordinates the call data model and the media engine on
// behalf of connection handlers. It owns join/leave and the cascading
// close semantics; wire formats stay in the signal adapter.
package app

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/core"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

type Orchestrator struct {
	Registry *core.Registry
	Policy   core.Policy
}

// ClosedConsumer is one consumer torn down by a producer-close
// cascade, together with the peer to notify.
type ClosedConsumer struct {
	Peer       *core.Peer
	ConsumerID domain.ConsumerID
}

// ConsumeResult carries what the consuming peer needs to attribute the
// new stream.
type ConsumeResult struct {
	Consumer     media.Consumer
	ProducerPeer core.PeerInfo
}

// Join resolves (or lazily creates) the room, applies the admission
// policy and registers a fresh peer session. The caller must send the
// welcome and join notifications only after Join returns.
func (o *Orchestrator) Join(ctx context.Context, roomID domain.RoomID, identity domain.Identity, conn core.SignalConnection) (*core.Room, *core.Peer, error) {
	for {
		room, err := o.Registry.GetOrCreate(ctx, roomID)
		if err != nil {
			return nil, nil, err
		}
		if o.Policy != nil {
			if err := o.Policy.Admit(room, identity); err != nil {
				return nil, nil, err
			}
		}
		peer := core.NewPeer(identity, conn)
		if room.AddPeer(peer) {
			return room, peer, nil
		}
		// The room was torn down while admission was in flight; resolve
		// a fresh one.
	}
}

// Leave tears the peer session down: consumers and producers first
// (producers cascading into other peers' consumers), transports last,
// then room membership. When the last peer leaves, the room is removed
// and its router released.
func (o *Orchestrator) Leave(room *core.Room, peer *core.Peer) (cascades []ClosedConsumer, left bool) {
	producers, consumers, transports := peer.TakeAll()

	for _, c := range consumers {
		_ = c.Close()
	}
	for _, prod := range producers {
		cascades = append(cascades, o.cascadeProducerClose(room, prod)...)
		_ = prod.Close()
	}
	for _, t := range transports {
		_ = t.Close()
	}

	remaining, removed := room.RemovePeer(peer.ID)
	if removed && remaining == 0 {
		o.Registry.Remove(room)
	}
	return cascades, removed
}

// CreateTransport creates a transport of the requested direction on the
// room's router and registers it under the peer. At most one recv
// transport per peer; consumers are keyed to it.
func (o *Orchestrator) CreateTransport(ctx context.Context, room *core.Room, peer *core.Peer, direction media.Direction) (media.TransportInfo, error) {
	if !direction.Valid() {
		return media.TransportInfo{}, ErrInvalidDirection
	}
	if direction == media.DirectionRecv {
		if _, ok := peer.RecvTransport(); ok {
			return media.TransportInfo{}, ErrRecvTransportExists
		}
	}

	t, err := room.Router().CreateTransport(ctx, direction)
	if err != nil {
		return media.TransportInfo{}, err
	}
	// The peer may have disconnected while the engine call was in
	// flight; the result is discarded then.
	if _, ok := room.Peer(peer.ID); !ok {
		_ = t.Close()
		return media.TransportInfo{}, ErrPeerGone
	}
	peer.AddTransport(t)
	return t.Info(), nil
}

func (o *Orchestrator) ConnectTransport(ctx context.Context, peer *core.Peer, transportID domain.TransportID, dtlsParameters json.RawMessage) error {
	t, ok := peer.Transport(transportID)
	if !ok {
		return ErrTransportNotFound
	}
	return t.Connect(ctx, dtlsParameters)
}

// Produce creates a producer on the named transport, tagged with the
// sender's identity.
func (o *Orchestrator) Produce(ctx context.Context, room *core.Room, peer *core.Peer, transportID domain.TransportID, kind media.Kind, rtpParameters json.RawMessage) (media.Producer, error) {
	t, ok := peer.Transport(transportID)
	if !ok {
		return nil, ErrTransportNotFound
	}
	info := peer.Info()
	prod, err := t.Produce(ctx, kind, rtpParameters, media.ProducerMeta{
		PeerID:      info.ID,
		UserID:      info.UserID,
		DisplayName: info.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	if _, ok := room.Peer(peer.ID); !ok {
		_ = prod.Close()
		return nil, ErrPeerGone
	}
	peer.AddProducer(prod)
	return prod, nil
}

// Consume binds a paused consumer on the peer's recv transport to a
// producer owned by any peer of the room.
func (o *Orchestrator) Consume(ctx context.Context, room *core.Room, peer *core.Peer, producerID domain.ProducerID, rtpCapabilities json.RawMessage) (ConsumeResult, error) {
	owner, _, ok := room.FindProducer(producerID)
	if !ok {
		return ConsumeResult{}, ErrProducerNotFound
	}
	if !room.Router().CanConsume(producerID, rtpCapabilities) {
		return ConsumeResult{}, ErrCannotConsume
	}
	rt, ok := peer.RecvTransport()
	if !ok {
		return ConsumeResult{}, ErrNoRecvTransport
	}

	c, err := rt.Consume(ctx, producerID, rtpCapabilities)
	if err != nil {
		return ConsumeResult{}, err
	}
	if _, ok := room.Peer(peer.ID); !ok {
		_ = c.Close()
		return ConsumeResult{}, ErrPeerGone
	}
	peer.AddConsumer(c)
	return ConsumeResult{Consumer: c, ProducerPeer: owner.Info()}, nil
}

func (o *Orchestrator) ResumeConsumer(ctx context.Context, peer *core.Peer, consumerID domain.ConsumerID) error {
	c, ok := peer.Consumer(consumerID)
	if !ok {
		return ErrConsumerNotFound
	}
	return c.Resume(ctx)
}

// CloseProducer closes the peer's producer and cascades into every
// consumer referencing it across the room. The returned list carries
// exactly one entry per closed consumer for notification.
func (o *Orchestrator) CloseProducer(room *core.Room, peer *core.Peer, producerID domain.ProducerID) ([]ClosedConsumer, error) {
	prod, ok := peer.Producer(producerID)
	if !ok {
		return nil, ErrProducerNotFound
	}
	cascades := o.cascadeProducerClose(room, prod)
	_ = prod.Close()
	peer.RemoveProducer(producerID)
	log.Info().Str("module", "app.orch").Str("room", string(room.ID)).Str("producer", string(producerID)).Int("consumers_closed", len(cascades)).Msg("producer closed")
	return cascades, nil
}

// Producers enumerates the producers of all other peers in the room.
func (o *Orchestrator) Producers(room *core.Room, peer *core.Peer) []core.ProducerEntry {
	return room.ProducerEntries(peer.ID)
}

// cascadeProducerClose removes and closes every consumer in the room
// referencing prod. Explicit call from the close paths, not an event
// subscription.
func (o *Orchestrator) cascadeProducerClose(room *core.Room, prod media.Producer) []ClosedConsumer {
	var out []ClosedConsumer
	for _, p := range room.Peers() {
		for _, c := range p.TakeConsumersOf(prod.ID()) {
			_ = c.Close()
			out = append(out, ClosedConsumer{Peer: p, ConsumerID: c.ID()})
		}
	}
	return out
}
