package membership

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	client redis.UniversalClient
	keys   Keys
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, keys Keys, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultUserRoomsTTL
	}
	return &RedisStore{client: client, keys: keys, ttl: ttl, now: time.Now}
}

func (s *RedisStore) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return s.client.SIsMember(ctx, s.keys.RoomMembers(roomID), userID).Result()
}

// AddMember records the user in the room set and the room in the user's
// index with the join time in unix milliseconds.
func (s *RedisStore) AddMember(ctx context.Context, roomID, userID string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, s.keys.RoomMembers(roomID), userID)
		p.HSet(ctx, s.keys.UserRooms(userID), roomID, strconv.FormatInt(s.now().UnixMilli(), 10))
		return nil
	})
	return err
}

func (s *RedisStore) Members(ctx context.Context, roomID string) ([]string, error) {
	return s.client.SMembers(ctx, s.keys.RoomMembers(roomID)).Result()
}

func (s *RedisStore) UserRooms(ctx context.Context, userID string) ([]string, error) {
	return s.client.HKeys(ctx, s.keys.UserRooms(userID)).Result()
}

// Touch is a no-op for users without an index; EXPIRE ignores missing keys.
func (s *RedisStore) Touch(ctx context.Context, userID string) error {
	return s.client.Expire(ctx, s.keys.UserRooms(userID), s.ttl).Err()
}
