package metrics

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/events"
)

// SessionEventTopics are the bus topics counted by RecordSessionEvents.
var SessionEventTopics = []string{events.TopicSessionLogin, events.TopicSessionLogout, events.TopicUserSignedUp}

// RecordSessionEvents counts session events published on bus until ctx is
// done or the bus is closed.
func (m *AppMetrics) RecordSessionEvents(ctx context.Context, bus *events.Bus) {
	merged := make(chan events.Event, 64)
	var wg sync.WaitGroup
	for _, topic := range SessionEventTopics {
		ch := bus.Subscribe(topic, 64)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range ch {
				select {
				case merged <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case e, ok := <-merged:
			if !ok {
				return
			}
			m.RecordSessionEvent(ctx, e.Topic)
		case <-ctx.Done():
			return
		}
	}
}
