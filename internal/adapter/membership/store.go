package membership

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable is returned while the store circuit is open.
var ErrStoreUnavailable = errors.New("membership store unavailable")

// DefaultUserRoomsTTL bounds how long a user's room index survives without
// activity. It heals state left behind by missed disconnects.
const DefaultUserRoomsTTL = 300 * time.Second

// Store is the authoritative room membership shared by every node. All
// mutations are idempotent set operations.
type Store interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	AddMember(ctx context.Context, roomID, userID string) error
	Members(ctx context.Context, roomID string) ([]string, error)
	// UserRooms lists the raw room ids recorded for the user.
	UserRooms(ctx context.Context, userID string) ([]string, error)
	// Touch refreshes the expiry of the user's room index if it exists.
	Touch(ctx context.Context, userID string) error
}

// Keys derives the shared key layout.
type Keys struct {
	RoomMembersFmt string
	UserRoomsFmt   string
}

func DefaultKeys() Keys {
	return Keys{
		RoomMembersFmt: "room:%s:members",
		UserRoomsFmt:   "user:%s:room",
	}
}

func (k Keys) RoomMembers(roomID string) string { return fmt.Sprintf(k.RoomMembersFmt, roomID) }
func (k Keys) UserRooms(userID string) string   { return fmt.Sprintf(k.UserRoomsFmt, userID) }
