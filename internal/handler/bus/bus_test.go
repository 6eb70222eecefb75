package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	infrapubsub "github.com/webitel/im-realtime-gateway/infra/pubsub"
	"github.com/webitel/im-realtime-gateway/infra/pubsub/factory"
	pubsubadapter "github.com/webitel/im-realtime-gateway/internal/adapter/pubsub"
	"github.com/webitel/im-realtime-gateway/internal/domain/event"
)

type fanoutCall struct {
	ev  event.Eventer
	raw string
}

type recordingFanouter struct {
	mu    sync.Mutex
	calls []fanoutCall
	err   error
	panic bool
}

func (f *recordingFanouter) Fanout(_ context.Context, ev event.Eventer, raw []byte) error {
	if f.panic {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fanoutCall{ev: ev, raw: string(raw)})
	return f.err
}

func (f *recordingFanouter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *outcomeRecorder) BusEvent(_, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func newHandler(f *recordingFanouter, m Metrics) *MessageHandler {
	return NewMessageHandler(f, slog.Default(), m, nil, DefaultSettings())
}

func msg(payload string) *message.Message {
	return message.NewMessage(watermill.NewUUID(), []byte(payload))
}

func TestBindAcksInvalidPayloads(t *testing.T) {
	f := &recordingFanouter{}
	m := &outcomeRecorder{}
	h := newHandler(f, m)
	handle := Bind(h, "message-created", h.OnMessageCreated)

	for _, payload := range []string{
		`not json`,
		`{"id":"m1","roomId":"1"}`,
		`{"id":"m1","roomId":"   ","senderId":"u"}`,
	} {
		assert.NoError(t, handle(msg(payload)), payload)
	}

	assert.Zero(t, f.count())
	assert.Equal(t, []string{OutcomeInvalid, OutcomeInvalid, OutcomeInvalid}, m.outcomes)
}

func TestBindFansOutValidEvent(t *testing.T) {
	f := &recordingFanouter{}
	h := newHandler(f, nil)
	raw := `{"streamId":"s1","messageId":"m1","roomId":"4","chunkIndex":0,"isFinal":true}`

	require.NoError(t, Bind(h, "ar-stream-chunk", h.OnStreamChunk)(msg(raw)))

	require.Equal(t, 1, f.count())
	chunk, ok := f.calls[0].ev.(*event.StreamChunk)
	require.True(t, ok)
	assert.Equal(t, "s1", chunk.StreamID)
	assert.Equal(t, raw, f.calls[0].raw)
}

func TestBindNacksBridgeFailure(t *testing.T) {
	f := &recordingFanouter{err: errors.New("redis down")}
	m := &outcomeRecorder{}
	h := newHandler(f, m)
	handle := Bind(h, "reaction-created", h.OnReactionCreated)

	assert.Error(t, handle(msg(`{"messageId":"m1","roomId":"2"}`)))

	f.err = event.ErrValidation
	assert.NoError(t, handle(msg(`{"messageId":"m1","roomId":"2"}`)))
	assert.Equal(t, []string{OutcomeFailed, OutcomeInvalid}, m.outcomes)
}

func TestBindRecoversPanic(t *testing.T) {
	h := newHandler(&recordingFanouter{panic: true}, nil)
	err := Bind(h, "reply-created", h.OnReplyCreated)(msg(`{"messageId":"m2","roomId":"2","replyToMessageId":"m1"}`))
	assert.ErrorIs(t, err, ErrPanic)
}

func startRouter(t *testing.T, h *MessageHandler, provider *infrapubsub.Provider, s Settings) *message.Router {
	t.Helper()
	router, err := NewWatermillRouter(s, slog.Default())
	require.NoError(t, err)
	require.NoError(t, h.RegisterHandlers(router, pubsubadapter.NewSubscriberProvider(provider)))

	go func() { _ = router.Run(context.Background()) }()
	t.Cleanup(func() { _ = router.Close() })
	<-router.Running()
	return router
}

func newGoChannelProvider(t *testing.T) *infrapubsub.Provider {
	t.Helper()
	provider, err := infrapubsub.NewProvider(factory.Config{Driver: factory.DriverGoChannel}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.GetFactory().Close() })
	return provider
}

func TestRouterConsumesConfiguredTopics(t *testing.T) {
	provider := newGoChannelProvider(t)

	f := &recordingFanouter{}
	s := DefaultSettings()
	s.Topics.StreamChunk = ""
	router := startRouter(t, NewMessageHandler(f, slog.Default(), nil, nil, s), provider, s)
	assert.Len(t, router.Handlers(), 4)

	pub, err := pubsubadapter.NewPublisherProvider(provider).Build()
	require.NoError(t, err)
	require.NoError(t, pub.Publish(s.Topics.MessageCreated, msg(`{"id":"m1","roomId":" 9 ","senderId":"u1"}`)))
	require.NoError(t, pub.Publish(s.Topics.ReplyCreated, msg(`{"messageId":"m2","roomId":"9","replyToMessageId":"m1"}`)))

	assert.Eventually(t, func() bool { return f.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestConsumerGroupHandlesEachEventOnce(t *testing.T) {
	provider := newGoChannelProvider(t)
	s := DefaultSettings()

	// Two nodes of the fleet consume the same topics from one group.
	nodes := []*recordingFanouter{{}, {}}
	for _, f := range nodes {
		startRouter(t, NewMessageHandler(f, slog.Default(), nil, nil, s), provider, s)
	}

	pub, err := pubsubadapter.NewPublisherProvider(provider).Build()
	require.NoError(t, err)
	const total = 20
	for i := range total {
		payload := fmt.Sprintf(`{"id":"m%d","roomId":"%d","senderId":"u1"}`, i, i%3)
		require.NoError(t, pub.Publish(s.Topics.MessageCreated, msg(payload)))
	}

	handled := func() int { return nodes[0].count() + nodes[1].count() }
	assert.Eventually(t, func() bool { return handled() == total }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, total, handled())

	seen := make(map[string]int, total)
	for _, f := range nodes {
		f.mu.Lock()
		for _, c := range f.calls {
			seen[c.ev.GetID()]++
		}
		f.mu.Unlock()
	}
	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}
