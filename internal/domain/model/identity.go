package model

import "time"

// SenderHuman is the sender type of every socket-originated message.
const SenderHuman = "human"

// Identity is the verified subject attached to a connection at handshake time.
// It never changes for the lifetime of the connection.
type Identity struct {
	UserID    string
	Type      string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// Expired reports whether the identity's token expiry has passed.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
