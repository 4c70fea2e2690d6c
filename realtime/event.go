package realtime

import (
	"context"
	"sync"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent describes one row change in a collection. Old is empty for inserts,
// New is empty for deletes.
type ChangeEvent struct {
	Type       EventType      `json:"type"`
	Collection string         `json:"collection"`
	RecordID   string         `json:"record_id"`
	Old        map[string]any `json:"old,omitempty"`
	New        map[string]any `json:"new,omitempty"`
	At         time.Time      `json:"at"`
}

// Filter selects event types. An empty filter matches every type.
type Filter struct {
	Events []EventType
}

func (f Filter) Match(e ChangeEvent) bool {
	if len(f.Events) == 0 {
		return true
	}
	for _, t := range f.Events {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Transport delivers change events for a collection. Subscribe returns once the
// subscription is confirmed.
type Transport interface {
	Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error)
}

// Publisher accepts change events for fan-out.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Subscription is a live feed. C is closed after Unsubscribe or when the transport shuts down.
type Subscription struct {
	C <-chan ChangeEvent

	once   sync.Once
	cancel func()
}

func NewSubscription(c <-chan ChangeEvent, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Unsubscribe is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
