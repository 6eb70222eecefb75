package factory

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Driver names accepted by configuration.
const (
	DriverKafka     = "kafka"
	DriverAMQP      = "amqp"
	DriverGoChannel = "gochannel"
)

// MetadataPartitionKey holds the key outbound partitioning is derived from.
const MetadataPartitionKey = "partition_key"

// Factory builds publishers and subscribers of one bus driver.
type Factory interface {
	BuildPublisher() (message.Publisher, error)
	// BuildSubscriber returns a subscriber that joins the shared consumer
	// group, so each message of topic reaches one node of the fleet.
	BuildSubscriber(topic string) (message.Subscriber, error)
	Close() error
}

type Config struct {
	Driver        string
	ConsumerGroup string

	Kafka KafkaConfig
	AMQP  AMQPConfig
}

type KafkaConfig struct {
	Brokers           []string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	ClientID          string
}

type AMQPConfig struct {
	URL string
}

// New selects the driver named in cfg.
func New(cfg Config, logger watermill.LoggerAdapter) (Factory, error) {
	switch cfg.Driver {
	case DriverKafka:
		return newKafkaFactory(cfg, logger), nil
	case DriverAMQP:
		return newAMQPFactory(cfg, logger), nil
	case DriverGoChannel, "":
		return NewGoChannelFactory(logger), nil
	default:
		return nil, fmt.Errorf("pubsub factory: unknown driver %q", cfg.Driver)
	}
}
