// Package memory is an in-process implementation of the media engine
// capability interface. It performs no packet work; it only models the
// engine's object graph and lifecycle, which is what the call core and
// its tests need. It also backs the `engine: memory` dev mode.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

type Engine struct{}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) CreateWorker(ctx context.Context) (media.Worker, error) {
	return &Worker{died: make(chan error, 1)}, nil
}

// Worker models one engine instance.
type Worker struct {
	died chan error

	mu     sync.Mutex
	closed bool
}

func (w *Worker) CreateRouter(ctx context.Context, codecs []media.RouterCodec) (media.Router, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, media.ErrWorkerClosed
	}
	return &Router{
		caps:      media.RTPCapabilities{Codecs: codecs},
		producers: make(map[domain.ProducerID]*Producer),
	}, nil
}

func (w *Worker) Died() <-chan error {
	return w.died
}

func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.died)
	return nil
}

// Fail injects an unrecoverable worker fault. Test hook.
func (w *Worker) Fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.died <- err
	close(w.died)
}

// Router tracks producers router-wide so consume can reference a
// producer created on any transport.
type Router struct {
	caps media.RTPCapabilities

	mu        sync.Mutex
	closed    bool
	producers map[domain.ProducerID]*Producer
}

func (r *Router) Capabilities() media.RTPCapabilities {
	return r.caps
}

// capabilityCodecs is the subset of client rtpCapabilities the memory
// engine inspects for the compatibility check.
type capabilityCodecs struct {
	Codecs []struct {
		MimeType string `json:"mimeType"`
	} `json:"codecs"`
}

func (r *Router) CanConsume(producerID domain.ProducerID, rtpCapabilities json.RawMessage) bool {
	r.mu.Lock()
	p, ok := r.producers[producerID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	var caps capabilityCodecs
	if err := json.Unmarshal(rtpCapabilities, &caps); err != nil {
		return false
	}
	// Compatible when the client lists at least one codec the router
	// routes for the producer's kind.
	for _, cc := range caps.Codecs {
		for _, rc := range r.caps.Codecs {
			if rc.Kind == p.kind && rc.MimeType == cc.MimeType {
				return true
			}
		}
	}
	return false
}

func (r *Router) CreateTransport(ctx context.Context, direction media.Direction) (media.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, media.ErrRouterClosed
	}
	return &Transport{
		id:        domain.TransportID(uuid.NewString()),
		direction: direction,
		router:    r,
		producers: make(map[domain.ProducerID]*Producer),
		consumers: make(map[domain.ConsumerID]*Consumer),
	}, nil
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, p := range r.producers {
		p.markClosed()
		delete(r.producers, id)
	}
	return nil
}

func (r *Router) removeProducer(id domain.ProducerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, id)
}

// Transport is one fake negotiated path. Its negotiation material is
// fabricated but well-formed so clients of the signaling protocol can
// round-trip it.
type Transport struct {
	id        domain.TransportID
	direction media.Direction
	router    *Router

	mu        sync.Mutex
	connected bool
	closed    bool
	producers map[domain.ProducerID]*Producer
	consumers map[domain.ConsumerID]*Consumer
}

func (t *Transport) ID() domain.TransportID {
	return t.id
}

func (t *Transport) Direction() media.Direction {
	return t.direction
}

func (t *Transport) Info() media.TransportInfo {
	ice, _ := json.Marshal(map[string]any{
		"usernameFragment": uuid.NewString()[:8],
		"password":         uuid.NewString(),
		"iceLite":          true,
	})
	candidates, _ := json.Marshal([]map[string]any{{
		"foundation": "udpcandidate",
		"priority":   1076302079,
		"ip":         "127.0.0.1",
		"port":       40000,
		"protocol":   "udp",
		"type":       "host",
	}})
	dtls, _ := json.Marshal(map[string]any{
		"role": "auto",
		"fingerprints": []map[string]string{{
			"algorithm": "sha-256",
			"value":     "00:00:00:00",
		}},
	})
	return media.TransportInfo{
		ID:             t.id,
		ICEParameters:  ice,
		ICECandidates:  candidates,
		DTLSParameters: dtls,
	}
}

func (t *Transport) Connect(ctx context.Context, dtlsParameters json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return media.ErrTransportClosed
	}
	if t.connected {
		return media.ErrTransportConnected
	}
	if len(dtlsParameters) == 0 {
		return fmt.Errorf("connect: %w", media.ErrInvalidRTPParams)
	}
	t.connected = true
	return nil
}

func (t *Transport) Produce(ctx context.Context, kind media.Kind, rtpParameters json.RawMessage, meta media.ProducerMeta) (media.Producer, error) {
	if !kind.Valid() {
		return nil, media.ErrInvalidKind
	}
	if !json.Valid(rtpParameters) {
		return nil, media.ErrInvalidRTPParams
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, media.ErrTransportClosed
	}
	p := &Producer{
		id:        domain.ProducerID(uuid.NewString()),
		kind:      kind,
		meta:      meta,
		rtpParams: rtpParameters,
		router:    t.router,
	}
	t.producers[p.id] = p
	t.router.mu.Lock()
	t.router.producers[p.id] = p
	t.router.mu.Unlock()
	return p, nil
}

func (t *Transport) Consume(ctx context.Context, producerID domain.ProducerID, rtpCapabilities json.RawMessage) (media.Consumer, error) {
	t.router.mu.Lock()
	p, ok := t.router.producers[producerID]
	t.router.mu.Unlock()
	if !ok {
		return nil, media.ErrProducerNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, media.ErrTransportClosed
	}
	c := &Consumer{
		id:         domain.ConsumerID(uuid.NewString()),
		producerID: producerID,
		kind:       p.kind,
		rtpParams:  p.rtpParams,
		paused:     true,
	}
	t.consumers[c.id] = c
	return c, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for id, p := range t.producers {
		p.markClosed()
		t.router.removeProducer(id)
		delete(t.producers, id)
	}
	for id, c := range t.consumers {
		c.markClosed()
		delete(t.consumers, id)
	}
	return nil
}

// Closed reports whether the transport has been torn down. Test hook.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type Producer struct {
	id        domain.ProducerID
	kind      media.Kind
	meta      media.ProducerMeta
	rtpParams json.RawMessage
	router    *Router

	mu     sync.Mutex
	closed bool
}

func (p *Producer) ID() domain.ProducerID    { return p.id }
func (p *Producer) Kind() media.Kind         { return p.kind }
func (p *Producer) Meta() media.ProducerMeta { return p.meta }

func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.router.removeProducer(p.id)
	return nil
}

func (p *Producer) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Closed reports whether the producer has been closed. Test hook.
func (p *Producer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type Consumer struct {
	id         domain.ConsumerID
	producerID domain.ProducerID
	kind       media.Kind
	rtpParams  json.RawMessage

	mu     sync.Mutex
	paused bool
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
	c.paused = false
	return nil
}

func (c *Consumer) Close() error {
	c.markClosed()
	return nil
}

func (c *Consumer) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Paused reports the consumer's pause state. Test hook.
func (c *Consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Closed reports whether the consumer has been closed. Test hook.
func (c *Consumer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
