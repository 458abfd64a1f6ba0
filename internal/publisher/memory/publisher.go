// Package memory records published events in process memory, for
// development runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Event is one recorded publication.
type Event struct {
	Topic   string
	Payload any
}

// Publisher implements harvest.Publisher on a slice. The zero value
// doubles as the noop publisher when events are disabled.
type Publisher struct {
	mu     sync.Mutex
	events []Event
	nextID int
}

// New returns an empty recording publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a synthetic message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Topic: topic, Payload: payload})
	p.nextID++
	return fmt.Sprintf("mem-%d", p.nextID), nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
