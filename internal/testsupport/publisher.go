package testsupport

import (
	"context"
	"sync"
)

type PublishedEvent struct {
	RoutingKey string
	Payload    any
}

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func (p *RecordingPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{RoutingKey: routingKey, Payload: payload})
	return nil
}

// Keys returns the routing keys in publish order.
func (p *RecordingPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, len(p.events))
	for i, e := range p.events {
		keys[i] = e.RoutingKey
	}
	return keys
}
