package factory

import (
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	defaultSessionTimeout    = 30 * time.Second
	defaultHeartbeatInterval = 3 * time.Second
)

type kafkaFactory struct {
	cfg    Config
	logger watermill.LoggerAdapter
}

func newKafkaFactory(cfg Config, logger watermill.LoggerAdapter) *kafkaFactory {
	return &kafkaFactory{cfg: cfg, logger: logger}
}

// partitionByRoom keeps every event of one room on one partition.
func partitionByRoom(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(MetadataPartitionKey), nil
}

func (f *kafkaFactory) publisherConfig() kafka.PublisherConfig {
	sc := kafka.DefaultSaramaSyncPublisherConfig()
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	if f.cfg.Kafka.ClientID != "" {
		sc.ClientID = f.cfg.Kafka.ClientID
	}
	return kafka.PublisherConfig{
		Brokers:               f.cfg.Kafka.Brokers,
		Marshaler:             kafka.NewWithPartitioningMarshaler(partitionByRoom),
		OverwriteSaramaConfig: sc,
	}
}

func (f *kafkaFactory) subscriberConfig() kafka.SubscriberConfig {
	sc := kafka.DefaultSaramaSubscriberConfig()
	sc.Consumer.Group.Session.Timeout = orDefault(f.cfg.Kafka.SessionTimeout, defaultSessionTimeout)
	sc.Consumer.Group.Heartbeat.Interval = orDefault(f.cfg.Kafka.HeartbeatInterval, defaultHeartbeatInterval)
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	if f.cfg.Kafka.ClientID != "" {
		sc.ClientID = f.cfg.Kafka.ClientID
	}
	return kafka.SubscriberConfig{
		Brokers:               f.cfg.Kafka.Brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: sc,
		ConsumerGroup:         f.cfg.ConsumerGroup,
	}
}

func (f *kafkaFactory) BuildPublisher() (message.Publisher, error) {
	return kafka.NewPublisher(f.publisherConfig(), f.logger)
}

func (f *kafkaFactory) BuildSubscriber(_ string) (message.Subscriber, error) {
	return kafka.NewSubscriber(f.subscriberConfig(), f.logger)
}

func (f *kafkaFactory) Close() error { return nil }

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
