package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Header names set on every NATS message.
const (
	HeaderMessageType = "Projectd-Message-Type"
)

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL     string
	Subject string

	// JetStream publishes with a Nats-Msg-Id header so the server drops
	// redelivered duplicates. Stream is ensured on startup.
	JetStream bool
	Stream    string
}

// NATSPublisher publishes envelopes to a single NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher connects to cfg.URL and, in JetStream mode, creates or
// updates the stream bound to cfg.Subject.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		return nil, errors.New("nats subject is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("projectd"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrlRedacted()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	p := &NATSPublisher{nc: nc, subject: cfg.Subject, logger: logger}

	if cfg.JetStream {
		if cfg.Stream == "" {
			nc.Close()
			return nil, errors.New("nats stream is required for jetstream")
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("creating jetstream context: %w", err)
		}
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("ensuring stream %s: %w", cfg.Stream, err)
		}
		p.js = js
	}

	logger.Info("nats publisher ready",
		zap.String("subject", cfg.Subject),
		zap.Bool("jetstream", cfg.JetStream))
	return p, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	m := nats.NewMsg(p.subject)
	m.Data = msg.Data
	m.Header.Set(HeaderMessageType, string(msg.Type))
	m.Header.Set(nats.MsgIdHdr, msg.ID)

	if p.js != nil {
		if _, err := p.js.PublishMsg(ctx, m); err != nil {
			return fmt.Errorf("jetstream publish: %w", err)
		}
		return nil
	}

	if err := p.nc.PublishMsg(m); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}
