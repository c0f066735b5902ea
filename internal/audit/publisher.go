// Package audit streams contract-call audit events to Kafka when brokers are
// configured. Publishing is best-effort: a failed publish is logged and never
// fails the interaction that produced it.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is one contract call as seen by the router or a confirmation handler.
type Event struct {
	TraceID   string    `json:"trace_id"`
	SlackUser string    `json:"slack_user,omitempty"`
	Method    string    `json:"method"`
	Deposit   string    `json:"deposit,omitempty"` // yoctoNEAR
	Outcome   string    `json:"outcome"`           // "ok" or the error text
	ElapsedMS int64     `json:"elapsed_ms"`
	At        time.Time `json:"at"`
}

// Publisher delivers audit events.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(brokers, topic string) Publisher {
	if strings.TrimSpace(brokers) == "" {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}

// KafkaPublisher writes events to a Kafka topic using segmentio/kafka-go.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("audit: marshal event", "error", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.TraceID),
		Value: value,
	})
	if err != nil {
		slog.Warn("audit: publish failed", "method", ev.Method, "error", err)
	}
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher drops all events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close() error                   { return nil }

// ChannelPublisher is an in-process Publisher implementation backed by a Go
// channel, for testing.
type ChannelPublisher struct {
	ch chan Event
}

// NewChannelPublisher creates an in-process publisher for testing.
func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Event, 100)}
}

func (p *ChannelPublisher) Publish(_ context.Context, ev Event) { p.ch <- ev }

// Events returns the channel of published events.
func (p *ChannelPublisher) Events() <-chan Event { return p.ch }

func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}
