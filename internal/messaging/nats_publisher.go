// Package messaging forwards domain events to NATS JetStream.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	StreamName    = "LENDORA"
	SubjectPrefix = "lendora."
)

// asyncPublisher is the part of nats.JetStreamContext the publisher uses
type asyncPublisher interface {
	PublishMsgAsync(m *nats.Msg, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// NATSPublisher implements websocket.EventPublisher by publishing each event
// to the lendora.<entity>.<action> subject of a JetStream stream
type NATSPublisher struct {
	nc     *nats.Conn
	js     asyncPublisher
	logger zerolog.Logger
}

var _ websocket.EventPublisher = (*NATSPublisher)(nil)

// Subject returns the NATS subject an event is published on
func Subject(event websocket.Event) string {
	return SubjectPrefix + event.Type
}

// Connect dials NATS, creates the JetStream context and makes sure the
// event stream exists
func Connect(ctx context.Context, url string, logger zerolog.Logger) (*NATSPublisher, error) {
	logger = logger.With().Str("component", "nats_publisher").Logger()

	opts := []nats.Option{
		nats.Name("lendora-backend"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("NATS disconnected with error")
			} else {
				logger.Warn().Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(nats.PublishAsyncErrHandler(func(_ nats.JetStream, msg *nats.Msg, err error) {
		logger.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to publish event")
	}))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, logger); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info().Str("url", url).Msg("Connected to NATS with JetStream")
	return &NATSPublisher{nc: nc, js: js, logger: logger}, nil
}

// ensureStream creates the event stream if it doesn't exist
func ensureStream(ctx context.Context, js nats.JetStreamContext, logger zerolog.Logger) error {
	_, err := js.StreamInfo(StreamName, nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", StreamName, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ">"},
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Description: "Loan, payment and invoice events",
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}

	logger.Info().Str("stream", StreamName).Msg("Created JetStream stream")
	return nil
}

// Publish sends the event without waiting for the server acknowledgement
func (p *NATSPublisher) Publish(event websocket.Event) {
	data, err := event.ToJSON()
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", event.Type).Msg("Failed to encode event")
		return
	}

	msg := nats.NewMsg(Subject(event))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if _, err := p.js.PublishMsgAsync(msg); err != nil {
		p.logger.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to publish event")
	}
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to drain NATS connection")
		p.nc.Close()
	}
}
