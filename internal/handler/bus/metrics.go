package bus

// Metrics receives one outcome per consumed message.
type Metrics interface {
	BusEvent(topic, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) BusEvent(string, string) {}
