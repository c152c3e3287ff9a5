package signal

import (
	"context"

	"github.com/rs/zerolog/log"
)

// handleMessage is the Active state. Messages of one connection are
// processed strictly in arrival order; the read pump calls this
// sequentially.
func (ctl *Controller) handleMessage(ctx context.Context, s *session, data []byte) {
	if !s.limiter.Allow() {
		ctl.Notifier.Send(s.conn, errorMessage{Type: "error", Code: "rate-limited", Reason: "too many signaling messages"})
		return
	}

	m, err := parseInbound(data)
	if err != nil {
		ctl.Notifier.Send(s.conn, errorMessage{Type: "error", Code: "bad-request", Reason: err.Error()})
		return
	}

	switch m.Type {
	case msgCreateTransport:
		ctl.handleCreateTransport(ctx, s, m)
	case msgConnectTransport:
		ctl.handleConnectTransport(ctx, s, m)
	case msgProduce:
		ctl.handleProduce(ctx, s, m)
	case msgConsume:
		ctl.handleConsume(ctx, s, m)
	case msgResumeConsumer:
		ctl.handleResumeConsumer(ctx, s, m)
	case msgCloseProducer:
		ctl.handleCloseProducer(s, m)
	case msgGetProducers:
		ctl.handleGetProducers(s)
	default:
		log.Warn().Str("module", "signal").Str("type", m.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) handleCreateTransport(ctx context.Context, s *session, m inboundMessage) {
	info, err := ctl.Orch.CreateTransport(ctx, s.room, s.peer, m.Direction)
	if err != nil {
		ctl.sendError(s, m.Type, err)
		return
	}
	ctl.Notifier.Send(s.conn, transportCreatedMessage{
		Type:      "transport-created",
		Direction: m.Direction,
		Transport: info,
	})
}

func (ctl *Controller) handleConnectTransport(ctx context.Context, s *session, m inboundMessage) {
	if err := ctl.Orch.ConnectTransport(ctx, s.peer, m.TransportID, m.DTLSParameters); err != nil {
		ctl.sendError(s, m.Type, err)
		return
	}
	ctl.Notifier.Send(s.conn, transportConnectedMessage{Type: "transport-connected", TransportID: m.TransportID})
}

func (ctl *Controller) handleProduce(ctx context.Context, s *session, m inboundMessage) {
	prod, err := ctl.Orch.Produce(ctx, s.room, s.peer, m.TransportID, m.Kind, m.RTPParameters)
	if err != nil {
		ctl.sendError(s, m.Type, err)
		return
	}
	ctl.Notifier.Send(s.conn, producedMessage{Type: "produced", ProducerID: prod.ID(), Kind: prod.Kind()})
	ctl.broadcast(s, newProducerMessage{
		Type:       "new-producer",
		Peer:       s.peer.Info(),
		ProducerID: prod.ID(),
		Kind:       prod.Kind(),
	})
}

func (ctl *Controller) handleConsume(ctx context.Context, s *session, m inboundMessage) {
	res, err := ctl.Orch.Consume(ctx, s.room, s.peer, m.ProducerID, m.RTPCapabilities)
	if err != nil {
		ctl.sendError(s, m.Type, err)
		return
	}
	c := res.Consumer
	ctl.Notifier.Send(s.conn, consumedMessage{
		Type:          "consumed",
		ConsumerID:    c.ID(),
		ProducerID:    c.ProducerID(),
		Kind:          c.Kind(),
		RTPParameters: c.RTPParameters(),
		ProducerPeer:  res.ProducerPeer,
	})
}

func (ctl *Controller) handleResumeConsumer(ctx context.Context, s *session, m inboundMessage) {
	if err := ctl.Orch.ResumeConsumer(ctx, s.peer, m.ConsumerID); err != nil {
		ctl.sendError(s, m.Type, err)
		return
	}
	ctl.Notifier.Send(s.conn, consumerResumedMessage{Type: "consumer-resumed", ConsumerID: m.ConsumerID})
}

func (ctl *Controller) handleCloseProducer(s *session, m inboundMessage) {
	cascades, err := ctl.Orch.CloseProducer(s.room, s.peer, m.ProducerID)
	if err != nil {
		ctl.sendError(s, m.Type, err)
		return
	}
	// Affected consumers hear about their own teardown before the
	// room-wide producer-closed event.
	for _, cc := range cascades {
		ctl.Notifier.Send(cc.Peer.Conn(), consumerClosedMessage{Type: "consumer-closed", ConsumerID: cc.ConsumerID})
	}
	ctl.broadcast(s, producerClosedMessage{
		Type:       "producer-closed",
		PeerID:     s.peer.ID,
		ProducerID: m.ProducerID,
	})
}

func (ctl *Controller) handleGetProducers(s *session) {
	ctl.Notifier.Send(s.conn, producersMessage{
		Type:      "producers",
		Producers: ctl.Orch.Producers(s.room, s.peer),
	})
}
