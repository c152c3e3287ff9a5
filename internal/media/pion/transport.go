package pion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

// Transport bundles the ORTC triplet (gatherer, ICE, DTLS) for one
// negotiated path to a peer.
type Transport struct {
	id        domain.TransportID
	direction media.Direction
	router    *Router

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	info     media.TransportInfo

	mu        sync.Mutex
	connected bool
	closed    bool
	producers map[domain.ProducerID]*Producer
	consumers map[domain.ConsumerID]*Consumer
}

type iceCandidateWire struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
}

type dtlsParamsWire struct {
	Role         string                   `json:"role"`
	Fingerprints []webrtc.DTLSFingerprint `json:"fingerprints"`
}

func newTransport(ctx context.Context, r *Router, direction media.Direction) (*Transport, error) {
	gatherer, err := r.api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("new gatherer: %w", err)
	}
	ice := r.api.NewICETransport(gatherer)
	dtls, err := r.api.NewDTLSTransport(ice, nil)
	if err != nil {
		return nil, fmt.Errorf("new dtls transport: %w", err)
	}

	gathered := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gathered)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return nil, fmt.Errorf("local candidates: %w", err)
	}
	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		return nil, fmt.Errorf("local ice parameters: %w", err)
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return nil, fmt.Errorf("local dtls parameters: %w", err)
	}

	wireCandidates := make([]iceCandidateWire, 0, len(candidates))
	for _, c := range candidates {
		wireCandidates = append(wireCandidates, iceCandidateWire{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			IP:         c.Address,
			Protocol:   c.Protocol.String(),
			Port:       c.Port,
			Type:       c.Typ.String(),
		})
	}

	iceJSON, _ := json.Marshal(map[string]any{
		"usernameFragment": iceParams.UsernameFragment,
		"password":         iceParams.Password,
		"iceLite":          true,
	})
	candidatesJSON, _ := json.Marshal(wireCandidates)
	dtlsJSON, _ := json.Marshal(dtlsParamsWire{
		Role:         "auto",
		Fingerprints: dtlsParams.Fingerprints,
	})

	t := &Transport{
		id:        domain.TransportID(uuid.NewString()),
		direction: direction,
		router:    r,
		gatherer:  gatherer,
		ice:       ice,
		dtls:      dtls,
		producers: make(map[domain.ProducerID]*Producer),
		consumers: make(map[domain.ConsumerID]*Consumer),
	}
	t.info = media.TransportInfo{
		ID:             t.id,
		ICEParameters:  iceJSON,
		ICECandidates:  candidatesJSON,
		DTLSParameters: dtlsJSON,
	}
	return t, nil
}

func (t *Transport) ID() domain.TransportID {
	return t.id
}

func (t *Transport) Direction() media.Direction {
	return t.direction
}

func (t *Transport) Info() media.TransportInfo {
	return t.info
}

// connectParams is the client half of the handshake. The remote ICE
// parameters ride along with the DTLS parameters because the ORTC API
// needs both to start the transports.
type connectParams struct {
	Role          string                   `json:"role"`
	Fingerprints  []webrtc.DTLSFingerprint `json:"fingerprints"`
	ICEParameters *webrtc.ICEParameters    `json:"iceParameters"`
}

func (t *Transport) Connect(ctx context.Context, dtlsParameters json.RawMessage) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return media.ErrTransportClosed
	}
	if t.connected {
		t.mu.Unlock()
		return media.ErrTransportConnected
	}
	t.connected = true
	t.mu.Unlock()

	var params connectParams
	if err := json.Unmarshal(dtlsParameters, &params); err != nil {
		return fmt.Errorf("connect: %w", media.ErrInvalidRTPParams)
	}
	if params.ICEParameters == nil {
		return fmt.Errorf("connect: missing iceParameters: %w", media.ErrInvalidRTPParams)
	}

	iceRole := webrtc.ICERoleControlled
	if err := t.ice.Start(t.gatherer, *params.ICEParameters, &iceRole); err != nil {
		return fmt.Errorf("ice start: %w", err)
	}

	dtlsRole := webrtc.DTLSRoleAuto
	switch params.Role {
	case "client":
		dtlsRole = webrtc.DTLSRoleClient
	case "server":
		dtlsRole = webrtc.DTLSRoleServer
	}
	if err := t.dtls.Start(webrtc.DTLSParameters{
		Role:         dtlsRole,
		Fingerprints: params.Fingerprints,
	}); err != nil {
		return fmt.Errorf("dtls start: %w", err)
	}
	return nil
}

// producerParams is the subset of client rtpParameters the engine maps
// onto the RTP receiver.
type producerParams struct {
	Codecs []struct {
		MimeType    string `json:"mimeType"`
		PayloadType uint8  `json:"payloadType"`
		ClockRate   uint32 `json:"clockRate"`
		Channels    uint16 `json:"channels"`
	} `json:"codecs"`
	Encodings []struct {
		SSRC uint32 `json:"ssrc"`
	} `json:"encodings"`
}

func (t *Transport) Produce(ctx context.Context, kind media.Kind, rtpParameters json.RawMessage, meta media.ProducerMeta) (media.Producer, error) {
	if !kind.Valid() {
		return nil, media.ErrInvalidKind
	}
	var params producerParams
	if err := json.Unmarshal(rtpParameters, &params); err != nil {
		return nil, media.ErrInvalidRTPParams
	}
	if len(params.Codecs) == 0 || len(params.Encodings) == 0 {
		return nil, media.ErrInvalidRTPParams
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, media.ErrTransportClosed
	}
	t.mu.Unlock()

	codecType := webrtc.RTPCodecTypeAudio
	if kind == media.KindVideo {
		codecType = webrtc.RTPCodecTypeVideo
	}
	receiver, err := t.router.api.NewRTPReceiver(codecType, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("new receiver: %w", err)
	}
	recvParams := webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				SSRC:        webrtc.SSRC(params.Encodings[0].SSRC),
				PayloadType: webrtc.PayloadType(params.Codecs[0].PayloadType),
			},
		}},
	}
	if err := receiver.Receive(recvParams); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}

	p := &Producer{
		id:   domain.ProducerID(uuid.NewString()),
		kind: kind,
		meta: meta,
		codec: webrtc.RTPCodecCapability{
			MimeType:  params.Codecs[0].MimeType,
			ClockRate: params.Codecs[0].ClockRate,
			Channels:  params.Codecs[0].Channels,
		},
		rtpParams: rtpParameters,
		receiver:  receiver,
		relay:     newRelay(receiver.Track()),
		router:    t.router,
	}
	go p.relay.run()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		p.stop()
		return nil, media.ErrTransportClosed
	}
	t.producers[p.id] = p
	t.mu.Unlock()
	t.router.addProducer(p)

	log.Debug().Str("module", "media").
		Str("producer", string(p.id)).Str("kind", string(kind)).
		Msg("producer created")
	return p, nil
}

func (t *Transport) Consume(ctx context.Context, producerID domain.ProducerID, rtpCapabilities json.RawMessage) (media.Consumer, error) {
	p, ok := t.router.producer(producerID)
	if !ok {
		return nil, media.ErrProducerNotFound
	}

	local, err := webrtc.NewTrackLocalStaticRTP(p.codec, uuid.NewString(), string(producerID))
	if err != nil {
		return nil, fmt.Errorf("new local track: %w", err)
	}
	sender, err := t.router.api.NewRTPSender(local, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("new sender: %w", err)
	}
	if err := sender.Send(sender.GetParameters()); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	c := &Consumer{
		id:         domain.ConsumerID(uuid.NewString()),
		producerID: producerID,
		kind:       p.kind,
		rtpParams:  p.rtpParams,
		sender:     sender,
		out:        newOutTrack(local),
		producer:   p,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = sender.Stop()
		return nil, media.ErrTransportClosed
	}
	t.consumers[c.id] = c
	t.mu.Unlock()
	p.relay.addOut(c.id, c.out)

	return c, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	producers := make([]*Producer, 0, len(t.producers))
	for id, p := range t.producers {
		producers = append(producers, p)
		delete(t.producers, id)
	}
	consumers := make([]*Consumer, 0, len(t.consumers))
	for id, c := range t.consumers {
		consumers = append(consumers, c)
		delete(t.consumers, id)
	}
	t.mu.Unlock()

	for _, c := range consumers {
		c.teardown()
	}
	for _, p := range producers {
		t.router.removeProducer(p.id)
		p.stop()
	}
	if err := t.dtls.Stop(); err != nil {
		log.Debug().Str("module", "media").Err(err).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		log.Debug().Str("module", "media").Err(err).Msg("ice stop")
	}
	return nil
}

// Producer owns the RTP receiver for one incoming stream and the relay
// fanning its packets out to consumers.
type Producer struct {
	id        domain.ProducerID
	kind      media.Kind
	meta      media.ProducerMeta
	codec     webrtc.RTPCodecCapability
	rtpParams json.RawMessage
	receiver  *webrtc.RTPReceiver
	relay     *relay
	router    *Router

	mu     sync.Mutex
	closed bool
}

func (p *Producer) ID() domain.ProducerID    { return p.id }
func (p *Producer) Kind() media.Kind         { return p.kind }
func (p *Producer) Meta() media.ProducerMeta { return p.meta }

func (p *Producer) Close() error {
	p.router.removeProducer(p.id)
	p.stop()
	return nil
}

func (p *Producer) stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.relay.stop()
	if err := p.receiver.Stop(); err != nil {
		log.Debug().Str("module", "media").Err(err).Msg("receiver stop")
	}
}

// Consumer owns the RTP sender for one outgoing stream. It starts
// paused; Resume lets the relay forward packets to its track.
type Consumer struct {
	id         domain.ConsumerID
	producerID domain.ProducerID
	kind       media.Kind
	rtpParams  json.RawMessage
	sender     *webrtc.RTPSender
	out        *outTrack
	producer   *Producer

	mu     sync.Mutex
	closed bool
}

func (c *Consumer) ID() domain.ConsumerID         { return c.id }
func (c *Consumer) ProducerID() domain.ProducerID { return c.producerID }
func (c *Consumer) Kind() media.Kind              { return c.kind }

func (c *Consumer) RTPParameters() json.RawMessage {
	return c.rtpParams
}

func (c *Consumer) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return media.ErrConsumerClosed
	}
	c.out.markFlowing()
	return nil
}

func (c *Consumer) Close() error {
	c.teardown()
	return nil
}

func (c *Consumer) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.out.markDead()
	c.producer.relay.removeOut(c.id)
	if err := c.sender.Stop(); err != nil {
		log.Debug().Str("module", "media").Err(err).Msg("sender stop")
	}
}
