// Package pion implements the media engine capability interface on top
// of pion/webrtc ORTC primitives. A worker owns the transport settings
// for one engine instance; each router gets its own webrtc.API with the
// router's codec set registered.
package pion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

type Config struct {
	// AnnouncedIP is advertised in ICE candidates instead of the local
	// interface address (for deployments behind NAT).
	AnnouncedIP string
	MinPort     uint16
	MaxPort     uint16
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) CreateWorker(ctx context.Context) (media.Worker, error) {
	se := webrtc.SettingEngine{}
	if e.cfg.MinPort != 0 || e.cfg.MaxPort != 0 {
		if err := se.SetEphemeralUDPPortRange(e.cfg.MinPort, e.cfg.MaxPort); err != nil {
			return nil, fmt.Errorf("set port range: %w", err)
		}
	}
	if e.cfg.AnnouncedIP != "" {
		se.SetNAT1To1IPs([]string{e.cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}
	// The server side is the ICE lite agent; clients do the connectivity
	// checks.
	se.SetLite(true)

	return &Worker{settings: se, died: make(chan error, 1)}, nil
}

type Worker struct {
	settings webrtc.SettingEngine
	died     chan error

	mu     sync.Mutex
	closed bool
}

func (w *Worker) CreateRouter(ctx context.Context, codecs []media.RouterCodec) (media.Router, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, media.ErrWorkerClosed
	}

	me := &webrtc.MediaEngine{}
	for i, c := range codecs {
		kind := webrtc.RTPCodecTypeAudio
		if c.Kind == media.KindVideo {
			kind = webrtc.RTPCodecTypeVideo
		}
		params := webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    c.MimeType,
				ClockRate:   c.ClockRate,
				Channels:    c.Channels,
				SDPFmtpLine: fmtpLine(c.Parameters),
			},
			PayloadType: webrtc.PayloadType(100 + i),
		}
		if err := me.RegisterCodec(params, kind); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.MimeType, err)
		}
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithSettingEngine(w.settings),
	)
	return &Router{
		api:       api,
		codecs:    codecs,
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

// fmtpLine renders codec parameters as an SDP fmtp attribute with
// deterministic key order.
func fmtpLine(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ";")
}

// Router matches producers to consumers within one room.
type Router struct {
	api    *webrtc.API
	codecs []media.RouterCodec
	caps   media.RTPCapabilities

	mu        sync.Mutex
	closed    bool
	producers map[domain.ProducerID]*Producer
}

func (r *Router) Capabilities() media.RTPCapabilities {
	return r.caps
}

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
	for _, cc := range caps.Codecs {
		for _, rc := range r.codecs {
			if rc.Kind == p.kind && strings.EqualFold(rc.MimeType, cc.MimeType) {
				return true
			}
		}
	}
	return false
}

func (r *Router) CreateTransport(ctx context.Context, direction media.Direction) (media.Transport, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, media.ErrRouterClosed
	}
	r.mu.Unlock()
	return newTransport(ctx, r, direction)
}

func (r *Router) Close() error {
	r.mu.Lock()
	producers := make([]*Producer, 0, len(r.producers))
	for id, p := range r.producers {
		producers = append(producers, p)
		delete(r.producers, id)
	}
	r.closed = true
	r.mu.Unlock()

	for _, p := range producers {
		p.stop()
	}
	return nil
}

func (r *Router) addProducer(p *Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p.id] = p
}

func (r *Router) producer(id domain.ProducerID) (*Producer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *Router) removeProducer(id domain.ProducerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, id)
}
