package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"
	infrapubsub "github.com/webitel/im-realtime-gateway/infra/pubsub"
	"github.com/webitel/im-realtime-gateway/infra/pubsub/factory"
)

type PublisherProvider struct {
	factory factory.Factory
}

func NewPublisherProvider(p *infrapubsub.Provider) *PublisherProvider {
	return &PublisherProvider{factory: p.GetFactory()}
}

func (pp *PublisherProvider) Build() (message.Publisher, error) {
	return pp.factory.BuildPublisher()
}

type SubscriberProvider struct {
	factory factory.Factory
}

func NewSubscriberProvider(p *infrapubsub.Provider) *SubscriberProvider {
	return &SubscriberProvider{factory: p.GetFactory()}
}

// Build returns a subscriber that is a member of the fleet wide group.
func (sp *SubscriberProvider) Build(topic string) (message.Subscriber, error) {
	return sp.factory.BuildSubscriber(topic)
}
