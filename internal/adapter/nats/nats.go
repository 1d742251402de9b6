// Package nats implements the event bus port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/ticketslack/internal/logger"
	"github.com/Strob0t/ticketslack/internal/port/eventbus"
)

// headerRequestID carries the request ID across the bus.
const headerRequestID = "X-Request-ID"

// Compile-time interface check.
var _ eventbus.Bus = (*Bus)(nil)

// Bus implements eventbus.Bus using NATS JetStream.
type Bus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  string
	durable string
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// capturing the host signals exists. durable prefixes the consumer names so
// restarts resume where the previous process stopped.
func Connect(ctx context.Context, url, stream, durable string) (*Bus, error) {
	nc, err := nats.Connect(url, nats.Name("ticketslack"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: eventbus.Signals,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", stream)
	return &Bus{nc: nc, js: js, stream: stream, durable: durable}, nil
}

// Publish sends an event on the given signal. The request ID from ctx, if
// any, travels in a header.
func (b *Bus) Publish(ctx context.Context, signal string, data []byte) error {
	msg := &nats.Msg{Subject: signal, Data: data, Header: nats.Header{}}
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}
	if _, err := b.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", signal, err)
	}
	return nil
}

// Subscribe registers a durable consumer for signal. Every delivered message
// is acknowledged once the handler returns: a failed dispatch is already
// recorded in the host log and is not retried. Payloads the handler rejects
// as malformed or unknown are terminated instead.
func (b *Bus) Subscribe(ctx context.Context, signal string, handler eventbus.Handler) (func(), error) {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.stream, jetstream.ConsumerConfig{
		Durable:       consumerName(b.durable, signal),
		FilterSubject: signal,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		b.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	slog.Info("nats subscribed", "signal", signal, "consumer", consumerName(b.durable, signal))
	return cons.Stop, nil
}

func (b *Bus) handle(msg jetstream.Msg, handler eventbus.Handler) {
	reqID := msg.Headers().Get(headerRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	ctx := logger.WithRequestID(context.Background(), reqID)

	err := handler(ctx, msg.Subject(), msg.Data())
	switch {
	case errors.Is(err, eventbus.ErrMalformed), errors.Is(err, eventbus.ErrUnknownSignal):
		slog.WarnContext(ctx, "terminating unprocessable message", "subject", msg.Subject(), "error", err)
		if termErr := msg.Term(); termErr != nil {
			slog.ErrorContext(ctx, "nats term failed", "error", termErr)
		}
		return
	case err != nil:
		slog.ErrorContext(ctx, "message handler failed", "subject", msg.Subject(), "error", err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.ErrorContext(ctx, "nats ack failed", "error", ackErr)
	}
}

// consumerName derives a durable consumer name; NATS forbids dots in names.
func consumerName(prefix, signal string) string {
	return prefix + "-" + strings.ReplaceAll(signal, ".", "-")
}

// Drain gracefully drains all subscriptions and closes the connection.
func (b *Bus) Drain() error {
	if err := b.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (b *Bus) Close() error {
	b.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (b *Bus) IsConnected() bool {
	return b.nc.IsConnected()
}
