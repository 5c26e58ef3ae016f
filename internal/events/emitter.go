package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each publish when EmitterConfig.Timeout is unset.
const DefaultTimeout = 5 * time.Second

// ErrPublish wraps every delivery failure.
var ErrPublish = errors.New("event publish failed")

// Message is a serialized envelope ready for delivery.
type Message struct {
	ID   string
	Type Type
	Data []byte
}

// Publisher delivers messages to one destination.
type Publisher interface {
	// Publish delivers msg, honouring ctx's deadline.
	Publish(ctx context.Context, msg Message) error

	// Close releases the underlying connection.
	Close() error
}

// Emitter wraps payloads in envelopes and hands them to a Publisher.
type Emitter interface {
	// Emit publishes one change notification. It makes a single attempt.
	Emit(ctx context.Context, changeType Type, payload any) error
}

// EmitterConfig configures the Emitter.
type EmitterConfig struct {
	// Timeout bounds each publish (default: 5s).
	Timeout time.Duration

	// Now stamps OccurredAt (default: time.Now in UTC).
	Now func() time.Time

	// NewID generates message ids (default: uuid.NewString).
	NewID func() string
}

type emitter struct {
	pub     Publisher
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger
}

// NewEmitter creates an Emitter publishing through pub.
func NewEmitter(pub Publisher, cfg EmitterConfig, logger *zap.Logger) (Emitter, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &emitter{
		pub:     pub,
		timeout: cfg.Timeout,
		now:     cfg.Now,
		newID:   cfg.NewID,
		logger:  logger,
	}, nil
}

// Emit implements Emitter.
func (e *emitter) Emit(ctx context.Context, changeType Type, payload any) error {
	msg, err := e.encode(changeType, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.pub.Publish(ctx, msg); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrPublish, changeType, msg.ID, err)
	}

	e.logger.Debug("event published",
		zap.String("message_id", msg.ID),
		zap.String("message_type", string(changeType)))
	return nil
}

func (e *emitter) encode(changeType Type, payload any) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshaling %s payload: %w", changeType, err)
	}
	env := Envelope{
		MessageID:   e.newID(),
		MessageType: changeType,
		OccurredAt:  e.now(),
		Payload:     body,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Message{}, fmt.Errorf("marshaling %s envelope: %w", changeType, err)
	}
	return Message{ID: env.MessageID, Type: changeType, Data: data}, nil
}
