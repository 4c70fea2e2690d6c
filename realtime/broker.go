package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrBrokerClosed = errors.New("broker closed")

const subscriberBuffer = 64

type subscriber struct {
	collection string
	filter     Filter
	ch         chan ChangeEvent
}

// Broker is the in-process Transport and Publisher. Slow subscribers lose events
// rather than block publishers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
	logger *logrus.Logger
}

func NewBroker(logger *logrus.Logger) *Broker {
	return &Broker{
		subs:   make(map[*subscriber]struct{}),
		logger: logger,
	}
}

func (b *Broker) Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	sub := &subscriber{
		collection: collection,
		filter:     filter,
		ch:         make(chan ChangeEvent, subscriberBuffer),
	}
	b.subs[sub] = struct{}{}

	b.logger.WithFields(logrus.Fields{
		"collection":  collection,
		"subscribers": len(b.subs),
	}).Debug("Subscriber registered")

	return NewSubscription(sub.ch, func() { b.remove(sub) }), nil
}

func (b *Broker) Publish(ctx context.Context, event ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}

	for sub := range b.subs {
		if sub.collection != event.Collection || !sub.filter.Match(event) {
			continue
		}
		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.logger.WithFields(logrus.Fields{
				"collection": event.Collection,
				"event":      event.Type,
			}).Warn("Subscriber buffer full, dropping event")
		}
	}
	return nil
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

func (b *Broker) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
