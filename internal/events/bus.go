package events

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	TopicSessionLogin  = "session.login"
	TopicSessionLogout = "session.logout"
	TopicUserSignedUp  = "user.signed_up"
)

type Event struct {
	Topic      string
	UserID     string
	Attributes map[string]string
	OccurredAt time.Time
}

// Bus is an in-process publish/subscribe hub. Subscribers own a buffered
// channel; Publish never waits on a slow subscriber.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event
	closed  bool
	dropped atomic.Int64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan Event)}
}

// Subscribe returns a channel receiving events of topic. An empty topic
// receives everything.
func (b *Bus) Subscribe(topic string, buffer int) <-chan Event {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

func (b *Bus) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	deliver := func(subs []chan Event) {
		for _, ch := range subs {
			select {
			case ch <- e:
			default:
				b.dropped.Add(1)
			}
		}
	}
	deliver(b.subs[e.Topic])
	if e.Topic != "" {
		deliver(b.subs[""])
	}
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
}
