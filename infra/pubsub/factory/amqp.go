package factory

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// amqpFactory emulates a consumer group with one durable queue per topic whose
// name depends only on the group. Every node consumes the same queue, so the
// broker hands each message to a single node.
type amqpFactory struct {
	cfg    Config
	logger watermill.LoggerAdapter
}

func newAMQPFactory(cfg Config, logger watermill.LoggerAdapter) *amqpFactory {
	return &amqpFactory{cfg: cfg, logger: logger}
}

// QueueName is the shared queue that consumes topic.
func (f *amqpFactory) QueueName(topic string) string {
	return amqp.GenerateQueueNameTopicNameWithSuffix(f.cfg.ConsumerGroup)(topic)
}

func (f *amqpFactory) config() amqp.Config {
	return amqp.NewDurablePubSubConfig(
		f.cfg.AMQP.URL,
		amqp.GenerateQueueNameTopicNameWithSuffix(f.cfg.ConsumerGroup),
	)
}

func (f *amqpFactory) BuildPublisher() (message.Publisher, error) {
	return amqp.NewPublisher(f.config(), f.logger)
}

func (f *amqpFactory) BuildSubscriber(_ string) (message.Subscriber, error) {
	return amqp.NewSubscriber(f.config(), f.logger)
}

func (f *amqpFactory) Close() error { return nil }
