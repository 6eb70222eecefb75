package model

import (
	"errors"
	"strings"
)

// ErrInvalidRoom is returned when a room identifier is empty after normalization.
var ErrInvalidRoom = errors.New("invalid room id")

// NormalizeRoomID trims surrounding whitespace so that every raw variant of the
// same id maps to one RoomLocalSet key and one broadcast channel.
func NormalizeRoomID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrInvalidRoom
	}
	return id, nil
}

// Stream distinguishes event classes that share a room id but travel on
// separate broadcast channels.
type Stream int8

const (
	StreamChat  Stream = iota + 1 // room:<id>
	StreamAgent                   // ar-room:<id>
)

// Channels derives broadcast channel names from room ids.
type Channels struct {
	RoomPrefix   string
	StreamPrefix string
	Events       string
}

// DefaultChannels mirrors the naming used by the rest of the platform.
func DefaultChannels() Channels {
	return Channels{
		RoomPrefix:   "room:",
		StreamPrefix: "ar-room:",
		Events:       "room.events",
	}
}

// For returns the channel for the given stream of a normalized room id.
func (c Channels) For(stream Stream, roomID string) string {
	if stream == StreamAgent {
		return c.StreamPrefix + roomID
	}
	return c.RoomPrefix + roomID
}

// Room returns the chat channel of a room.
func (c Channels) Room(roomID string) string { return c.For(StreamChat, roomID) }

// Parse maps a channel name back to its room id and stream.
func (c Channels) Parse(channel string) (roomID string, stream Stream, ok bool) {
	if c.StreamPrefix != "" && strings.HasPrefix(channel, c.StreamPrefix) {
		id, err := NormalizeRoomID(strings.TrimPrefix(channel, c.StreamPrefix))
		return id, StreamAgent, err == nil
	}
	if strings.HasPrefix(channel, c.RoomPrefix) {
		id, err := NormalizeRoomID(strings.TrimPrefix(channel, c.RoomPrefix))
		return id, StreamChat, err == nil
	}
	return "", 0, false
}
