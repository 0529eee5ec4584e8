package engine

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus carries engine events between the vendor backend, the read coordinator
// and diagnostic subscribers. It is owned by the engine instance and passed
// explicitly; there is no process-wide singleton.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish delivers an event synchronously to all subscribers of the topic.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers a handler invoked on the publisher's goroutine.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler invoked on its own goroutine.
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback reports whether the topic has any subscriber.
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// WaitAsync blocks until all async handlers have finished.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
