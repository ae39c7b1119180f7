package server

import (
	"sync"
)

// subscriberBuffer is how many frames a slow subscriber may lag before
// frames are dropped for it.
const subscriberBuffer = 64

// Broadcaster fans SSE frames out to every connected subscriber.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	frames chan string
	// kick is closed to force the connection down.
	kick chan struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{})}
}

// subscribe registers a new subscriber. It returns false once the
// broadcaster is closed.
func (b *Broadcaster) subscribe() (*subscriber, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	sub := &subscriber{
		frames: make(chan string, subscriberBuffer),
		kick:   make(chan struct{}),
	}
	b.subs[sub] = struct{}{}
	return sub, true
}

func (b *Broadcaster) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

// Publish queues data for every subscriber. A subscriber whose buffer is
// full misses the frame.
func (b *Broadcaster) Publish(data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.frames <- data:
		default:
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Disconnect drops every current connection. Clients may reconnect.
func (b *Broadcaster) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.kick)
		delete(b.subs, sub)
	}
}

// Close disconnects everyone and refuses new subscribers.
func (b *Broadcaster) Close() {
	b.Disconnect()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
