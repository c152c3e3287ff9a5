package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
)

// RoomInfo is a read-only registry view for APIs.
type RoomInfo struct {
	ID        domain.RoomID `json:"id"`
	PeerCount int           `json:"peerCount"`
}

// Registry is the process-wide room map. Rooms are created lazily on
// first reference and removed when their last peer leaves.
type Registry struct {
	pool   *media.Pool
	codecs []media.RouterCodec

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room

	group singleflight.Group
}

func NewRegistry(pool *media.Pool, codecs []media.RouterCodec) *Registry {
	return &Registry{
		pool:   pool,
		codecs: codecs,
		rooms:  make(map[domain.RoomID]*Room),
	}
}

// GetOrCreate returns the room for id, creating it on first reference.
// Creation is serialized per room id via singleflight so concurrent
// first references yield one room, and no registry lock is held across
// the engine's CreateRouter call.
func (r *Registry) GetOrCreate(ctx context.Context, id domain.RoomID) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return room, nil
	}

	v, err, _ := r.group.Do(string(id), func() (any, error) {
		r.mu.RLock()
		room, ok := r.rooms[id]
		r.mu.RUnlock()
		if ok {
			return room, nil
		}

		worker := r.pool.Next()
		router, err := worker.CreateRouter(ctx, r.codecs)
		if err != nil {
			return nil, fmt.Errorf("create router for room %s: %w", id, err)
		}
		room = NewRoom(id, router)

		r.mu.Lock()
		r.rooms[id] = room
		r.mu.Unlock()

		log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Room), nil
}

func (r *Registry) Get(id domain.RoomID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, RoomInfo{ID: id, PeerCount: room.PeerCount()})
	}
	return out
}

// Remove deletes the room and releases its router. A stale pointer (a
// new room re-created under the same id) is left untouched. The room is
// marked closed before it leaves the map and only while still empty, so
// a concurrent join either lands before the close and keeps the room,
// or sees the closed room and re-resolves through GetOrCreate. The
// router is closed at most once per room lifetime.
func (r *Registry) Remove(room *Room) {
	r.mu.Lock()
	cur, ok := r.rooms[room.ID]
	if !ok || cur != room {
		r.mu.Unlock()
		return
	}
	if !room.closeIfEmpty() {
		r.mu.Unlock()
		return
	}
	delete(r.rooms, room.ID)
	r.mu.Unlock()

	_ = room.router.Close()
	log.Info().Str("module", "core.registry").Str("room", string(room.ID)).Msg("room removed, router released")
}

// Close releases every room's router. Shutdown path only.
func (r *Registry) Close() {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for id, room := range r.rooms {
		rooms = append(rooms, room)
		delete(r.rooms, id)
	}
	r.mu.Unlock()

	for _, room := range rooms {
		if room.markClosed() {
			_ = room.router.Close()
		}
	}
}
