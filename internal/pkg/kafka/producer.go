package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Producer publishes export events. Events carry metadata only, never pixels.
type Producer interface {
	PublishExport(ctx context.Context, event entity.ExportEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
	log    *logrus.Entry
}

// NewProducer checks that the first broker is reachable and makes sure the
// topic exists. When the broker cannot be dialed it logs and returns a noop
// producer so exports keep working without Kafka.
func NewProducer(brokers []string, topic string, log *logrus.Entry) Producer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithFields(logrus.Fields{"component": "kafka", "topic": topic})

	if len(brokers) == 0 {
		log.Warn("no kafka brokers configured, export events are dropped")
		return NewNoopProducer(log)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.WithError(err).Warn("kafka connection failed, using noop producer")
		return NewNoopProducer(log)
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.WithError(err).Info("could not create topic (might already exist)")
	}

	log.WithField("brokers", brokers).Info("connected to kafka")
	return &kafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
		log:   log,
	}
}

func (p *kafkaProducer) PublishExport(ctx context.Context, event entity.ExportEvent) error {
	msg, err := exportMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	p.log.WithField("session", event.SessionID).Debug("export event published")
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// exportMessage keys events by session so one session's exports stay ordered.
func exportMessage(event entity.ExportEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.SessionID),
		Value: value,
		Time:  event.At,
	}, nil
}

// noopProducer stands in when Kafka is disabled or unreachable.
type noopProducer struct {
	log *logrus.Entry
}

func NewNoopProducer(log *logrus.Entry) Producer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &noopProducer{log: log}
}

func (n *noopProducer) PublishExport(_ context.Context, event entity.ExportEvent) error {
	n.log.WithFields(logrus.Fields{
		"session": event.SessionID,
		"file":    event.File,
		"bytes":   event.Bytes,
	}).Debug("export event (not published)")
	return nil
}

func (n *noopProducer) Close() error {
	return nil
}
