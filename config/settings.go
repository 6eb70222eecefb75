package config

import (
	clientdi "github.com/webitel/im-realtime-gateway/infra/client/di"
	infraotel "github.com/webitel/im-realtime-gateway/infra/otel"
	"github.com/webitel/im-realtime-gateway/infra/pubsub/factory"
	httpserver "github.com/webitel/im-realtime-gateway/infra/server/http"
	"github.com/webitel/im-realtime-gateway/internal/adapter/membership"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
	"github.com/webitel/im-realtime-gateway/internal/domain/registry"
	"github.com/webitel/im-realtime-gateway/internal/handler/bus"
	"github.com/webitel/im-realtime-gateway/internal/handler/ws"
	"github.com/webitel/im-realtime-gateway/internal/service"
)

// ServiceName is reported to tracing and used as the default client name.
const ServiceName = "im-realtime-gateway"

// [SETTINGS_PROJECTION]
// Every package receives only its own slice of the configuration.

func (c *Config) ModelChannels() model.Channels {
	return model.Channels{
		RoomPrefix:   c.Channels.RoomPrefix,
		StreamPrefix: c.Channels.StreamPrefix,
		Events:       c.Channels.Events,
	}
}

func (c *Config) RegistrySettings() registry.Settings {
	return registry.Settings{
		NodeID:            c.Node.ID,
		GracePeriod:       c.Registry.GracePeriod,
		HeartbeatInterval: c.Registry.HeartbeatInterval,
		InboxSize:         c.Registry.InboxSize,
		Channels:          c.ModelChannels(),
	}
}

func (c *Config) ServiceSettings() service.Settings {
	return service.Settings{
		NodeID:     c.Node.ID,
		SendBuffer: c.Registry.SendBuffer,
		Auth: service.AuthConfig{
			Secret:    c.Auth.Secret,
			JWKSURL:   c.Auth.JWKSURL,
			Issuer:    c.Auth.Issuer,
			Audience:  c.Auth.Audience,
			Leeway:    c.Auth.Leeway,
			CacheSize: c.Auth.CacheSize,
		},
		Topics: service.IngestTopics{
			Message:  c.Topics.MessageIngest,
			Reaction: c.Topics.ReactionIngest,
			Reply:    c.Topics.ReplyIngest,
		},
		Channels: c.ModelChannels(),
	}
}

func (c *Config) BusSettings() bus.Settings {
	return bus.Settings{
		Topics: bus.Topics{
			MessageCreated:  c.Topics.MessageCreated,
			ReactionCreated: c.Topics.ReactionCreated,
			ReactionRemoved: c.Topics.ReactionRemoved,
			ReplyCreated:    c.Topics.ReplyCreated,
			StreamChunk:     c.Topics.StreamChunk,
		},
		Retry: bus.RetryPolicy{
			MaxRetries:      c.Consumer.RetryMax,
			InitialInterval: c.Consumer.RetryInitial,
			MaxInterval:     c.Consumer.RetryMaxInterval,
		},
		Throttle:      c.Consumer.Throttle,
		Timeout:       c.Consumer.Timeout,
		CloseTimeout:  c.Consumer.CloseTimeout,
		ConsumerGroup: c.PubSub.ConsumerGroup,
	}
}

func (c *Config) PubSubConfig() factory.Config {
	return factory.Config{
		Driver:        c.PubSub.Driver,
		ConsumerGroup: c.PubSub.ConsumerGroup,
		Kafka: factory.KafkaConfig{
			Brokers:           c.PubSub.Kafka.Brokers,
			SessionTimeout:    c.PubSub.Kafka.SessionTimeout,
			HeartbeatInterval: c.PubSub.Kafka.HeartbeatInterval,
			ClientID:          c.PubSub.Kafka.ClientID,
		},
		AMQP: factory.AMQPConfig{URL: c.PubSub.AMQP.URL},
	}
}

func (c *Config) ClientSettings() clientdi.Settings {
	return clientdi.Settings{
		Redis: clientdi.RedisSettings{
			Addrs:      c.Redis.Addrs,
			Username:   c.Redis.Username,
			Password:   c.Redis.Password,
			DB:         c.Redis.DB,
			MasterName: c.Redis.MasterName,
		},
		NATS: clientdi.NATSSettings{URL: c.NATS.URL, Name: ServiceName + "/" + c.Node.ID},
	}
}

func (c *Config) MembershipKeys() membership.Keys {
	return membership.Keys{
		RoomMembersFmt: c.Membership.RoomMembersKey,
		UserRoomsFmt:   c.Membership.UserRoomsKey,
	}
}

func (c *Config) MembershipRetry() membership.RetryPolicy {
	r := c.Membership.Retry
	return membership.RetryPolicy{
		MaxTries:         r.MaxTries,
		InitialInterval:  r.InitialInterval,
		MaxInterval:      r.MaxInterval,
		FailureThreshold: r.FailureThreshold,
		OpenTimeout:      r.OpenTimeout,
	}
}

func (c *Config) TracingSettings() infraotel.Settings {
	return infraotel.Settings{
		ServiceName: ServiceName,
		NodeID:      c.Node.ID,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

func (c *Config) HTTPSettings() httpserver.Settings {
	return httpserver.Settings{
		Addr:              c.HTTP.Addr,
		ReadHeaderTimeout: c.HTTP.ReadHeaderTimeout,
		ShutdownTimeout:   c.HTTP.ShutdownTimeout,
	}
}

func (c *Config) SocketSettings() ws.Settings {
	return ws.Settings{AllowedOrigins: c.HTTP.AllowedOrigins}
}
