package registry

// Metrics receives registry counters. Implementations must be goroutine safe.
type Metrics interface {
	SetConnections(n int)
	SetRooms(n int)
	SetChannels(n int)
	FrameDelivered(frameType string)
	FrameDropped(frameType string)
	PresencePublished()
	HeartbeatTerminated()
}

type noopMetrics struct{}

func (noopMetrics) SetConnections(int)    {}
func (noopMetrics) SetRooms(int)          {}
func (noopMetrics) SetChannels(int)       {}
func (noopMetrics) FrameDelivered(string) {}
func (noopMetrics) FrameDropped(string)   {}
func (noopMetrics) PresencePublished()    {}
func (noopMetrics) HeartbeatTerminated()  {}
