package core

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

// Notifier delivers typed messages to connections. Best-effort: a
// closed target is not an error, the peer is simply gone.
type Notifier struct{}

// Send serializes v and enqueues it on one connection.
func (Notifier) Send(conn SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.notifier").Msg("marshal notification")
		return
	}
	if err := conn.TrySend(b); err != nil && !errors.Is(err, ErrConnClosed) {
		log.Debug().Err(err).Str("module", "core.notifier").Msg("send dropped")
	}
}

// Broadcast delivers v to every peer in the room except exclude (all
// peers when exclude is empty). Iteration order is unspecified. Peers
// whose queue was full are returned for policy handling.
func (Notifier) Broadcast(room *Room, exclude domain.PeerID, v any) []*Peer {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.notifier").Msg("marshal broadcast")
		return nil
	}

	var slow []*Peer
	for _, p := range room.Peers() {
		if p.ID == exclude {
			continue
		}
		if err := p.Conn().TrySend(b); err != nil {
			if errors.Is(err, ErrBackpressure) {
				slow = append(slow, p)
			}
		}
	}
	return slow
}
