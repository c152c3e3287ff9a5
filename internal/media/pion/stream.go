package pion

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

type trackState int32

const (
	// Consumers start paused; the relay skips them until Resume.
	trackStatePaused trackState = iota
	trackStateFlowing
	trackStateDead
)

// outTrack is one consumer's outgoing leg of a relay.
type outTrack struct {
	track *webrtc.TrackLocalStaticRTP
	state atomic.Int32
}

func newOutTrack(track *webrtc.TrackLocalStaticRTP) *outTrack {
	return &outTrack{track: track}
}

func (ot *outTrack) getState() trackState {
	return trackState(ot.state.Load())
}

func (ot *outTrack) markFlowing() {
	ot.state.Store(int32(trackStateFlowing))
}

func (ot *outTrack) markDead() {
	ot.state.Store(int32(trackStateDead))
}

// relay reads RTP from one producer track and fans it out to every
// consumer's outTrack.
type relay struct {
	src *webrtc.TrackRemote

	mu   sync.RWMutex
	outs map[domain.ConsumerID]*outTrack

	done chan struct{}
	once sync.Once
}

func newRelay(src *webrtc.TrackRemote) *relay {
	return &relay{
		src:  src,
		outs: make(map[domain.ConsumerID]*outTrack),
		done: make(chan struct{}),
	}
}

func (r *relay) run() {
	for {
		select {
		case <-r.done:
			r.markAllDead()
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			log.Debug().Str("module", "media").Err(err).Msg("relay read stopped")
			r.markAllDead()
			return
		}
		r.forward(pkt)
	}
}

func (r *relay) forward(pkt *rtp.Packet) {
	r.mu.RLock()
	snapshot := make(map[domain.ConsumerID]*outTrack, len(r.outs))
	maps.Copy(snapshot, r.outs)
	r.mu.RUnlock()

	dirty := make([]domain.ConsumerID, 0, len(snapshot))
	for id, ot := range snapshot {
		switch ot.getState() {
		case trackStateDead:
			dirty = append(dirty, id)
		case trackStatePaused:
		case trackStateFlowing:
			if err := ot.track.WriteRTP(pkt); err != nil {
				ot.markDead()
				dirty = append(dirty, id)
			}
		}
	}

	// Cleanup happens outside the read lock.
	if len(dirty) > 0 {
		r.mu.Lock()
		for _, id := range dirty {
			delete(r.outs, id)
		}
		r.mu.Unlock()
	}
}

func (r *relay) markAllDead() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outs {
		ot.markDead()
	}
}

func (r *relay) addOut(id domain.ConsumerID, ot *outTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outs[id] = ot
}

func (r *relay) removeOut(id domain.ConsumerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ot, ok := r.outs[id]; ok {
		ot.markDead()
		delete(r.outs, id)
	}
}

func (r *relay) stop() {
	r.once.Do(func() {
		close(r.done)
	})
}
