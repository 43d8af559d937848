package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/retail-pos/internal/metrics"
)

var ErrDisabled = errors.New("kafka disabled")

type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher relays outbox payloads. The writer has no fixed topic so
// each message carries the topic stored with its outbox row.
type KafkaPublisher struct {
	writer  messageWriter
	metrics *metrics.ServerMetrics
}

func (c *Client) NewPublisher(m *metrics.ServerMetrics) (*KafkaPublisher, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return newPublisher(writer, m), nil
}

func newPublisher(w messageWriter, m *metrics.ServerMetrics) *KafkaPublisher {
	return &KafkaPublisher{writer: w, metrics: m}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.EventsPublished.WithLabelValues(topic, status).Inc()
	}
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
