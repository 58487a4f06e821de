package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	b := New()
	received := make(chan interface{}, 1)

	b.Subscribe(TopicTransactionPutInPool, func(topic string, payload interface{}) {
		received <- payload
	})

	b.Message(TopicTransactionPutInPool, "tx-1")

	select {
	case payload := <-received:
		assert.Equal(t, "tx-1", payload)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestBusUnsubscribedTopicIsNoOp(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Message("nobody-listens", "payload")
	})
}

func TestBusHandlerPanicIsRecovered(t *testing.T) {
	b := New()
	ranSecond := false

	b.Subscribe("topic", func(string, interface{}) { panic("boom") })
	b.Subscribe("topic", func(string, interface{}) { ranSecond = true })

	assert.NotPanics(t, func() {
		b.Message("topic", nil)
	})
	assert.True(t, ranSecond, "a panicking handler must not block later subscribers")
}

func TestAccountSessionsDeliversToAttachedAddress(t *testing.T) {
	sessions := NewAccountSessions()
	received := make(chan AccountMessage, 1)

	sessions.Attach("DDK1", func(channel string, payload interface{}) {
		require.Equal(t, "pool/verify", channel)
		received <- payload.(AccountMessage)
	})

	sessions.Send("DDK1", "pool/verify", AccountMessage{Verified: true})

	select {
	case msg := <-received:
		assert.True(t, msg.Verified)
	case <-time.After(time.Second):
		t.Fatal("listener was not invoked")
	}
}

func TestAccountSessionsUnknownAddressIsNoOp(t *testing.T) {
	sessions := NewAccountSessions()
	assert.NotPanics(t, func() {
		sessions.Send("DDK-unknown", "pool/verify", AccountMessage{})
	})
}
