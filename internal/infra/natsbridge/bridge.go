// Package natsbridge forwards in-process bus events to NATS subjects.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/matiasleandrokruk/convo/internal/infra/eventbus"
)

// Publisher is the subset of *nats.Conn the bridge needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the JSON body published for every forwarded event.
type Envelope struct {
	Topic   string    `json:"topic"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Bridge subscribes to a bus and republishes each event as
// "<prefix>.<topic>". Publish failures are logged and dropped.
type Bridge struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// New returns a bridge that publishes through pub.
func New(pub Publisher, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{pub: pub, prefix: prefix, logger: logger}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("convo"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Subject maps a bus topic to its NATS subject.
func (b *Bridge) Subject(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + "." + topic
}

// Run forwards events from bus until ctx is done or the subscription closes.
// Launch with: go bridge.Run(ctx, bus, topics...)
func (b *Bridge) Run(ctx context.Context, bus eventbus.EventBus, topics ...string) {
	ch, cancel := bus.Subscribe(topics...)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b.Forward(evt)
		}
	}
}

// Forward publishes a single event.
func (b *Bridge) Forward(evt eventbus.Event) {
	data, err := json.Marshal(Envelope{Topic: evt.Topic, At: evt.At, Payload: evt.Payload})
	if err != nil {
		b.logger.Warn("nats bridge: encode event", "topic", evt.Topic, "error", err)
		return
	}
	subject := b.Subject(evt.Topic)
	if err := b.pub.Publish(subject, data); err != nil {
		b.logger.Warn("nats bridge: publish", "subject", subject, "error", err)
	}
}
