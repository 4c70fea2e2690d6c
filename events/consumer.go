package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

const subscriptionBuffer = 64

// GroupFactory opens a consumer group.
type GroupFactory func(groupID string, config *sarama.Config) (sarama.ConsumerGroup, error)

// KafkaTransport delivers the change feed from Kafka. Every subscription joins its own
// consumer group, starting at the newest offset, so each one sees every event published
// after it subscribed.
type KafkaTransport struct {
	topic     string
	groupBase string
	newGroup  GroupFactory
	logger    *logrus.Logger
}

func NewKafkaTransport(brokers []string, topic, groupBase string, logger *logrus.Logger) *KafkaTransport {
	return NewKafkaTransportWithFactory(func(groupID string, config *sarama.Config) (sarama.ConsumerGroup, error) {
		return sarama.NewConsumerGroup(brokers, groupID, config)
	}, topic, groupBase, logger)
}

func NewKafkaTransportWithFactory(factory GroupFactory, topic, groupBase string, logger *logrus.Logger) *KafkaTransport {
	if topic == "" {
		topic = DefaultChangesTopic
	}
	if groupBase == "" {
		groupBase = "backoffice"
	}
	return &KafkaTransport{topic: topic, groupBase: groupBase, newGroup: factory, logger: logger}
}

func consumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0
	return config
}

// Subscribe returns once the consumer group session is set up, or with the error that
// prevented it.
func (t *KafkaTransport) Subscribe(ctx context.Context, collection string, filter realtime.Filter) (*realtime.Subscription, error) {
	groupID := fmt.Sprintf("%s-%s", t.groupBase, uuid.NewString())
	group, err := t.newGroup(groupID, consumerConfig())
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	out := make(chan realtime.ChangeEvent, subscriptionBuffer)
	handler := &changeHandler{
		collection: collection,
		filter:     filter,
		out:        out,
		ready:      make(chan struct{}),
		logger:     t.logger,
	}

	consumeErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		for {
			if err := group.Consume(runCtx, []string{t.topic}, handler); err != nil {
				if !errors.Is(err, sarama.ErrClosedConsumerGroup) && runCtx.Err() == nil {
					t.logger.WithError(err).Error("Error consuming from Kafka")
					select {
					case consumeErr <- err:
					default:
					}
				}
				return
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range group.Errors() {
			t.logger.WithError(err).Warn("Kafka consumer error")
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			if err := group.Close(); err != nil {
				t.logger.WithError(err).Warn("Failed to close Kafka consumer group")
			}
			<-done
		})
	}

	select {
	case <-handler.ready:
	case err := <-consumeErr:
		stop()
		return nil, err
	case <-ctx.Done():
		stop()
		return nil, ctx.Err()
	}

	t.logger.WithFields(logrus.Fields{
		"topic":      t.topic,
		"group":      groupID,
		"collection": collection,
	}).Info("Kafka subscription ready")
	return realtime.NewSubscription(out, stop), nil
}

type changeHandler struct {
	collection string
	filter     realtime.Filter
	out        chan<- realtime.ChangeEvent
	ready      chan struct{}
	readyOnce  sync.Once
	logger     *logrus.Logger
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (h *changeHandler) Setup(sarama.ConsumerGroupSession) error {
	h.readyOnce.Do(func() { close(h.ready) })
	h.logger.Debug("Kafka consumer group session setup")
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (h *changeHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Kafka consumer group session cleanup")
	return nil
}

func (h *changeHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			event, match, err := decodeChange(message, h.collection, h.filter)
			if err != nil {
				// a poison message must not stall the partition
				h.logger.WithError(err).WithFields(logrus.Fields{
					"partition": message.Partition,
					"offset":    message.Offset,
				}).Error("Failed to decode change message")
			} else if match {
				select {
				case h.out <- event:
				case <-session.Context().Done():
					return nil
				}
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// decodeChange reads a change message and reports whether it belongs to the subscription.
func decodeChange(message *sarama.ConsumerMessage, collection string, filter realtime.Filter) (realtime.ChangeEvent, bool, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		return realtime.ChangeEvent{}, false, err
	}
	event := msg.ChangeEvent
	if event.Collection != collection || !filter.Match(event) {
		return event, false, nil
	}
	return event, true, nil
}
