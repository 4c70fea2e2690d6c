package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

const DefaultChangesTopic = "orders.changes"

// ChangeMessage is the Kafka payload of one change event.
type ChangeMessage struct {
	realtime.ChangeEvent
	EventTime time.Time `json:"event_time"`
}

// KafkaPublisher mirrors the change feed to a Kafka topic. It is a realtime.Publisher,
// so it can be handed to the change monitor as a sink.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *logrus.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *logrus.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *logrus.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultChangesTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

func (p *KafkaPublisher) Publish(ctx context.Context, event realtime.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ChangeMessage{ChangeEvent: event, EventTime: time.Now()})
	if err != nil {
		return err
	}

	// Keyed by record so every change of one order lands on the same partition, in order.
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(messageKey(event)),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", p.topic).Error("Failed to send change to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
		"event":     event.Type,
		"record_id": event.RecordID,
	}).Debug("Change published to Kafka")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func messageKey(event realtime.ChangeEvent) string {
	return event.Collection + ":" + event.RecordID
}
