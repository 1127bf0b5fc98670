// Package bus implements the fan-out of engine events to subscribers.
//
// Publish never blocks the round loop: events are marshalled once and handed
// to each subscriber through a buffered channel. A subscriber whose buffer
// is full is dropped from the fan-out set, never retried.
package bus

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Bus is the fan-out set.
type Bus struct {
	sync.Mutex

	subs   map[int]*Subscriber
	nextID int
	logger *logrus.Entry
}

// Subscriber receives marshalled events on a buffered channel. The channel
// is closed when the subscriber is dropped or unsubscribed.
type Subscriber struct {
	id int
	ch chan []byte
}

// Events returns the subscriber's event channel.
func (s *Subscriber) Events() <-chan []byte {
	return s.ch
}

// NewBus ...
func NewBus(logger *logrus.Entry) *Bus {
	return &Bus{
		subs:   make(map[int]*Subscriber),
		logger: logger,
	}
}

// Subscribe adds a subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscriber {
	b.Lock()
	defer b.Unlock()

	sub := &Subscriber{
		id: b.nextID,
		ch: make(chan []byte, buffer),
	}
	b.nextID++
	b.subs[sub.id] = sub

	b.logger.WithField("subscribers", len(b.subs)).Debug("Subscribed")

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Unsubscribing a
// subscriber that was already dropped is a no-op.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.Lock()
	defer b.Unlock()

	b.dropLocked(sub)
}

// Publish marshals the event to JSON and delivers it to every subscriber
// without blocking. Subscribers that cannot keep up are dropped.
func (b *Bus) Publish(event interface{}) {
	msg, err := json.Marshal(event)
	if err != nil {
		b.logger.WithError(err).Error("Marshalling event")
		return
	}

	b.Lock()
	defer b.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			b.logger.WithField("id", sub.id).Warn("Dropping slow subscriber")
			b.dropLocked(sub)
		}
	}
}

// Len returns the number of live subscribers.
func (b *Bus) Len() int {
	b.Lock()
	defer b.Unlock()

	return len(b.subs)
}

func (b *Bus) dropLocked(sub *Subscriber) {
	if _, ok := b.subs[sub.id]; !ok {
		return
	}

	delete(b.subs, sub.id)
	close(sub.ch)
}
