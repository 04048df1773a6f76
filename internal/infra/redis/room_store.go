package redis

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const markerTimeout = 250 * time.Millisecond

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Rooms themselves stay in process; Redis only carries a SessionInfo marker per live
// room (quiz:session:{id}) so operators and other tools can see what is running.
// Markers are rewritten when a room's summary changes, never on lookups.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]*app.Room

	// serializes marker writes with Delete so a late write cannot resurrect a marker
	markerMu sync.Mutex
}

func NewRoomStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RoomStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomStore{
		client: client,
		ttl:    ttl,
		logger: logger,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Put(room *app.Room) {
	s.mu.Lock()
	s.rooms[room.ID()] = room
	s.mu.Unlock()
	s.SessionChanged(room.Info())
}

func (s *RoomStore) Get(sessionID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[sessionID]
	return room, ok
}

func (s *RoomStore) Delete(sessionID string) {
	s.markerMu.Lock()
	defer s.markerMu.Unlock()

	s.mu.Lock()
	delete(s.rooms, sessionID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		s.logger.Warn("clear session marker", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *RoomStore) List() []*app.Room {
	s.mu.RLock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Info().CreatedAt.Before(out[j].Info().CreatedAt)
	})
	return out
}

// SessionChanged rewrites the marker of a stored room. Rooms not (or no longer) in the
// store are skipped. Failures are logged; the marker is best-effort.
func (s *RoomStore) SessionChanged(info domain.SessionInfo) {
	s.markerMu.Lock()
	defer s.markerMu.Unlock()

	s.mu.RLock()
	_, stored := s.rooms[info.SessionID]
	s.mu.RUnlock()
	if !stored {
		return
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	if err := s.client.Set(ctx, s.key(info.SessionID), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("write session marker", zap.String("session_id", info.SessionID), zap.Error(err))
	}
}

func (s *RoomStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
