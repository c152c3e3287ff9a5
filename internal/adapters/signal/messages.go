package signal

import (
	"encoding/json"
	"fmt"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/core"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

// Inbound message types.
const (
	msgCreateTransport  = "create-transport"
	msgConnectTransport = "connect-transport"
	msgProduce          = "produce"
	msgConsume          = "consume"
	msgResumeConsumer   = "resume-consumer"
	msgCloseProducer    = "close-producer"
	msgGetProducers     = "get-producers"
)

// inboundMessage is the union of all client-to-server payloads; which
// fields are required depends on Type.
type inboundMessage struct {
	Type            string             `json:"type"`
	Direction       media.Direction    `json:"direction,omitempty"`
	TransportID     domain.TransportID `json:"transportId,omitempty"`
	DTLSParameters  json.RawMessage    `json:"dtlsParameters,omitempty"`
	Kind            media.Kind         `json:"kind,omitempty"`
	RTPParameters   json.RawMessage    `json:"rtpParameters,omitempty"`
	ProducerID      domain.ProducerID  `json:"producerId,omitempty"`
	RTPCapabilities json.RawMessage    `json:"rtpCapabilities,omitempty"`
	ConsumerID      domain.ConsumerID  `json:"consumerId,omitempty"`
}

func parseInbound(data []byte) (inboundMessage, error) {
	var m inboundMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return inboundMessage{}, fmt.Errorf("malformed message: %w", err)
	}
	if err := m.validate(); err != nil {
		return inboundMessage{}, err
	}
	return m, nil
}

// validate checks required fields per type before any side effect.
// Unknown types pass through; the dispatcher logs and ignores them.
func (m inboundMessage) validate() error {
	switch m.Type {
	case msgCreateTransport:
		if !m.Direction.Valid() {
			return fmt.Errorf("create-transport: direction must be send or recv")
		}
	case msgConnectTransport:
		if m.TransportID == "" {
			return fmt.Errorf("connect-transport: missing transportId")
		}
		if len(m.DTLSParameters) == 0 {
			return fmt.Errorf("connect-transport: missing dtlsParameters")
		}
	case msgProduce:
		if m.TransportID == "" {
			return fmt.Errorf("produce: missing transportId")
		}
		if !m.Kind.Valid() {
			return fmt.Errorf("produce: kind must be audio or video")
		}
		if len(m.RTPParameters) == 0 {
			return fmt.Errorf("produce: missing rtpParameters")
		}
	case msgConsume:
		if m.ProducerID == "" {
			return fmt.Errorf("consume: missing producerId")
		}
		if len(m.RTPCapabilities) == 0 {
			return fmt.Errorf("consume: missing rtpCapabilities")
		}
	case msgResumeConsumer:
		if m.ConsumerID == "" {
			return fmt.Errorf("resume-consumer: missing consumerId")
		}
	case msgCloseProducer:
		if m.ProducerID == "" {
			return fmt.Errorf("close-producer: missing producerId")
		}
	case msgGetProducers:
	}
	return nil
}

// Server-to-client messages.

type welcomeMessage struct {
	Type            string                `json:"type"`
	PeerID          domain.PeerID         `json:"peerId"`
	RTPCapabilities media.RTPCapabilities `json:"rtpCapabilities"`
	Peers           []core.PeerInfo       `json:"peers"`
}

type peerJoinedMessage struct {
	Type string        `json:"type"`
	Peer core.PeerInfo `json:"peer"`
}

type peerLeftMessage struct {
	Type   string        `json:"type"`
	PeerID domain.PeerID `json:"peerId"`
}

type transportCreatedMessage struct {
	Type      string              `json:"type"`
	Direction media.Direction     `json:"direction"`
	Transport media.TransportInfo `json:"transport"`
}

type transportConnectedMessage struct {
	Type        string             `json:"type"`
	TransportID domain.TransportID `json:"transportId"`
}

type producedMessage struct {
	Type       string            `json:"type"`
	ProducerID domain.ProducerID `json:"producerId"`
	Kind       media.Kind        `json:"kind"`
}

type newProducerMessage struct {
	Type       string            `json:"type"`
	Peer       core.PeerInfo     `json:"peer"`
	ProducerID domain.ProducerID `json:"producerId"`
	Kind       media.Kind        `json:"kind"`
}

type consumedMessage struct {
	Type          string            `json:"type"`
	ConsumerID    domain.ConsumerID `json:"consumerId"`
	ProducerID    domain.ProducerID `json:"producerId"`
	Kind          media.Kind        `json:"kind"`
	RTPParameters json.RawMessage   `json:"rtpParameters"`
	ProducerPeer  core.PeerInfo     `json:"producerPeer"`
}

type consumerResumedMessage struct {
	Type       string            `json:"type"`
	ConsumerID domain.ConsumerID `json:"consumerId"`
}

type producerClosedMessage struct {
	Type       string            `json:"type"`
	PeerID     domain.PeerID     `json:"peerId"`
	ProducerID domain.ProducerID `json:"producerId"`
}

type consumerClosedMessage struct {
	Type       string            `json:"type"`
	ConsumerID domain.ConsumerID `json:"consumerId"`
}

type producersMessage struct {
	Type      string               `json:"type"`
	Producers []core.ProducerEntry `json:"producers"`
}

type errorMessage struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
	// Ref echoes the request type the error refers to.
	Ref string `json:"ref,omitempty"`
}
