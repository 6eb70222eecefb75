package membership

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a single process Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
	rooms   map[string]map[string]int64
	touched map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[string]map[string]struct{}),
		rooms:   make(map[string]map[string]int64),
		touched: make(map[string]time.Time),
	}
}

func (s *MemoryStore) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[roomID][userID]
	return ok, nil
}

func (s *MemoryStore) AddMember(_ context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[roomID] == nil {
		s.members[roomID] = make(map[string]struct{})
	}
	s.members[roomID][userID] = struct{}{}

	if s.rooms[userID] == nil {
		s.rooms[userID] = make(map[string]int64)
	}
	s.rooms[userID][roomID] = time.Now().UnixMilli()
	return nil
}

func (s *MemoryStore) Members(_ context.Context, roomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.members[roomID]), nil
}

func (s *MemoryStore) UserRooms(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rooms[userID]))
	for id := range s.rooms[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Touch(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[userID]; ok {
		s.touched[userID] = time.Now()
	}
	return nil
}

// TouchedAt reports the last Touch of a user's index.
func (s *MemoryStore) TouchedAt(userID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.touched[userID]
	return at, ok
}

// Seed records a membership without going through a socket.
func (s *MemoryStore) Seed(roomID string, userIDs ...string) {
	for _, u := range userIDs {
		_ = s.AddMember(context.Background(), roomID, u)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
