// Package media defines the capability interface of the media-routing
// engine consumed by the call core, plus the worker pool that owns the
// engine instances. The core only orchestrates; everything that touches
// packets lives behind these interfaces.
package media

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

var (
	ErrTransportClosed    = errors.New("transport closed")
	ErrTransportConnected = errors.New("transport already connected")
	ErrProducerNotFound   = errors.New("producer not found")
	ErrConsumerClosed     = errors.New("consumer closed")
	ErrRouterClosed       = errors.New("router closed")
	ErrWorkerClosed       = errors.New("worker closed")
	ErrInvalidKind        = errors.New("invalid media kind")
	ErrInvalidRTPParams   = errors.New("invalid rtp parameters")
)

// Kind of a media stream.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// Direction of a transport relative to the peer: "send" carries media
// from the peer into the room, "recv" from the room to the peer.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

func (d Direction) Valid() bool {
	return d == DirectionSend || d == DirectionRecv
}

// RouterCodec describes one codec a router is willing to route.
type RouterCodec struct {
	Kind       Kind           `json:"kind"`
	MimeType   string         `json:"mimeType"`
	ClockRate  uint32         `json:"clockRate"`
	Channels   uint16         `json:"channels,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RTPCapabilities is the router's routable codec set. It is relayed
// verbatim to clients in the welcome message.
type RTPCapabilities struct {
	Codecs []RouterCodec `json:"codecs"`
}

// TransportInfo is the negotiation material a client needs to connect
// to a freshly created transport. The parameter blobs are opaque to the
// core; each engine emits its own format.
type TransportInfo struct {
	ID             domain.TransportID `json:"id"`
	ICEParameters  json.RawMessage    `json:"iceParameters"`
	ICECandidates  json.RawMessage    `json:"iceCandidates"`
	DTLSParameters json.RawMessage    `json:"dtlsParameters"`
	SCTPParameters json.RawMessage    `json:"sctpParameters,omitempty"`
}

// ProducerMeta tags a producer with the identity of its sender so that
// consumers can attribute the stream without a second lookup.
type ProducerMeta struct {
	PeerID      domain.PeerID `json:"peerId"`
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
}

// Engine creates workers. Implementations: pion (real WebRTC stack)
// and memory (tests, dev mode).
type Engine interface {
	CreateWorker(ctx context.Context) (Worker, error)
}

// Worker is one media-engine instance. Workers are created once at
// startup and never restarted; an unrecoverable fault surfaces on Died
// and is fatal to the whole process.
type Worker interface {
	CreateRouter(ctx context.Context, codecs []RouterCodec) (Router, error)
	// Died yields the worker's fatal fault. The channel is closed
	// without a value on orderly shutdown.
	Died() <-chan error
	Close() error
}

// Router is the per-room routing context matching producers to
// consumers on one worker.
type Router interface {
	Capabilities() RTPCapabilities
	// CanConsume reports whether a consumer with the given
	// capabilities could receive the producer's stream.
	CanConsume(producerID domain.ProducerID, rtpCapabilities json.RawMessage) bool
	CreateTransport(ctx context.Context, direction Direction) (Transport, error)
	Close() error
}

// Transport is one negotiated network path between a peer and the
// router.
type Transport interface {
	ID() domain.TransportID
	Direction() Direction
	Info() TransportInfo
	Connect(ctx context.Context, dtlsParameters json.RawMessage) error
	Produce(ctx context.Context, kind Kind, rtpParameters json.RawMessage, meta ProducerMeta) (Producer, error)
	Consume(ctx context.Context, producerID domain.ProducerID, rtpCapabilities json.RawMessage) (Consumer, error)
	Close() error
}

// Producer is one stream a peer sends into the room.
type Producer interface {
	ID() domain.ProducerID
	Kind() Kind
	Meta() ProducerMeta
	Close() error
}

// Consumer is one stream a peer receives. It starts paused and flows
// only after Resume.
type Consumer interface {
	ID() domain.ConsumerID
	ProducerID() domain.ProducerID
	Kind() Kind
	RTPParameters() json.RawMessage
	Resume(ctx context.Context) error
	Close() error
}
