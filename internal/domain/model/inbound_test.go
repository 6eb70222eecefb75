package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	t.Run("join is normalized", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"type":"join","roomId":" 7 ","isARRoom":true}`))
		require.NoError(t, err)

		join, ok := in.(JoinFrame)
		require.True(t, ok)
		assert.Equal(t, "7", join.RoomID)
		assert.True(t, join.IsARRoom)
	})

	t.Run("blank room", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"type":"join","roomId":"   "}`))
		assert.ErrorIs(t, err, ErrInvalidRoom)
	})

	t.Run("send keeps optional fields", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"type":"message.send","roomId":"1","content":"hi","tempId":"t1"}`))
		require.NoError(t, err)
		send := in.(SendFrame)
		assert.Equal(t, "t1", send.TempID)
		assert.Equal(t, "hi", send.Content)
	})

	t.Run("reaction action", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"type":"message.reaction","roomId":"1","messageId":"m","emoji":"x","action":"toggle"}`))
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("reply requires target", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"type":"message.reply","roomId":"1","content":"x"}`))
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("ping", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"type":"ping"}`))
		require.NoError(t, err)
		assert.Equal(t, InboundPing, in.Kind())
	})

	t.Run("unknown and garbage", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"type":"dance"}`))
		assert.ErrorIs(t, err, ErrMalformedFrame)
		_, err = DecodeInbound([]byte(`not json`))
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})
}

func TestPriorityOf(t *testing.T) {
	assert.Less(t, PriorityOf(FrameStreamChunk), PriorityOf(FrameMessage))
	assert.Less(t, PriorityOf(FrameMessage), PriorityOf(FrameRoomDeleted))
}
