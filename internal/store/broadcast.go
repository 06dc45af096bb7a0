package store

import (
	"context"
	"sync"
)

// watchBuffer is the per-subscriber event buffer. A subscriber that
// falls further behind blocks the producer rather than losing events.
const watchBuffer = 16

type subscriber struct {
	events chan Event
	done   chan struct{}
}

// Broadcaster fans document events out to watch subscribers. Backends
// hold one to implement Watch. The zero value is ready to use.
type Broadcaster struct {
	mutex       sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
}

// Subscribe registers a subscriber that receives broadcast events until
// ctx is done. The channel is never closed; consumers select on their
// own ctx to stop.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan Event {
	sub := &subscriber{
		events: make(chan Event, watchBuffer),
		done:   make(chan struct{}),
	}

	b.mutex.Lock()
	if b.subscribers == nil {
		b.subscribers = make(map[int]*subscriber)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[id] = sub
	b.mutex.Unlock()

	go func() {
		<-ctx.Done()
		b.mutex.Lock()
		delete(b.subscribers, id)
		b.mutex.Unlock()
		close(sub.done)
	}()

	return sub.events
}

// Broadcast delivers the events to every subscriber in order, blocking
// until each subscriber accepts them or its watch ends.
func (b *Broadcaster) Broadcast(events ...Event) {
	if len(events) == 0 {
		return
	}

	b.mutex.Lock()
	subscribers := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subscribers = append(subscribers, sub)
	}
	b.mutex.Unlock()

	for _, sub := range subscribers {
		for _, event := range events {
			select {
			case sub.events <- event:
			case <-sub.done:
			}
		}
	}
}
