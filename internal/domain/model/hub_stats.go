package model

import "time"

// HubStats is the node-local snapshot served on /stats.
type HubStats struct {
	NodeID           string        `json:"node_id"`
	TotalUsers       int           `json:"total_users"`
	TotalConnections int           `json:"total_connections"`
	Channels         int           `json:"channels"`
	PendingGrace     int           `json:"pending_grace"`
	Uptime           time.Duration `json:"uptime"`
	Rooms            []RoomStats   `json:"rooms,omitempty"`
}

type RoomStats struct {
	RoomID      string `json:"room_id"`
	Sockets     int    `json:"sockets"`
	OpenSockets int    `json:"open_sockets"`
}
