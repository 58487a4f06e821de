// Package bus provides fire-and-forget broadcast and per-account
// notification collaborators (Bus.message, AccountSessions.send):
// topic-keyed listeners invoked synchronously from Message, no
// delivery guarantees.
package bus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{"prefix": "bus"})

// Topic names used by the admission pipeline.
const (
	TopicTransactionPutInPool = "transactionPutInPool"
)

// Handler receives a bus message. Handlers are invoked synchronously
// from Message and must not block for long.
type Handler func(topic string, payload interface{})

// Bus is a minimal topic-keyed publish/subscribe broker.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers fn to be called for every Message on topic.
func (b *Bus) Subscribe(topic string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], fn)
}

// Message publishes payload on topic to all current subscribers,
// best-effort: a panicking handler is recovered and logged so it can
// never take down the caller (the Sequence, in practice).
func (b *Bus) Message(topic string, payload interface{}) {
	b.mu.RLock()
	hs := append([]Handler{}, b.handlers[topic]...)
	b.mu.RUnlock()

	for _, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).WithField("topic", topic).Error("bus handler panicked")
				}
			}()
			h(topic, payload)
		}()
	}
}

// AccountMessage is what AccountSessions.Send delivers on the
// "pool/verify" channel.
type AccountMessage struct {
	Verified bool
	Error    string
}

// AccountSessions notifies per-account listeners (e.g. an attached user
// session) of pipeline outcomes. Grounded on the same subscriber shape
// as Bus, keyed by address instead of topic.
type AccountSessions struct {
	mu        sync.RWMutex
	listeners map[string][]func(channel string, payload interface{})
}

// NewAccountSessions returns an empty AccountSessions registry.
func NewAccountSessions() *AccountSessions {
	return &AccountSessions{listeners: make(map[string][]func(string, interface{}))}
}

// Attach registers fn to receive messages sent to address.
func (a *AccountSessions) Attach(address string, fn func(channel string, payload interface{})) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners[address] = append(a.listeners[address], fn)
}

// Send delivers payload on channel to every listener attached to
// address. Unknown addresses are a silent no-op.
func (a *AccountSessions) Send(address, channel string, payload interface{}) {
	a.mu.RLock()
	ls := append([]func(string, interface{}){}, a.listeners[address]...)
	a.mu.RUnlock()

	for _, fn := range ls {
		fn(channel, payload)
	}
}
