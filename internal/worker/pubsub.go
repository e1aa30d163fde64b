package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// JobHandler runs one encoded job message. *Dispatcher implements it.
type JobHandler interface {
	Handle(ctx context.Context, data []byte) error
}

// Ack decisions for a handled message.
type ackDecision int

const (
	ack ackDecision = iota
	nack
)

// decide acks success and messages that can never succeed; anything else is
// nacked for redelivery.
func decide(err error) ackDecision {
	switch {
	case err == nil, errors.Is(err, ErrUnknownJob), errors.Is(err, ErrMalformedJob):
		return ack
	default:
		return nack
	}
}

// PubSubConfig holds configuration for the Pub/Sub subscriber.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Handler          JobHandler

	// MaxOutstanding caps in-flight messages. Default: 4 (retrains are heavy).
	MaxOutstanding int

	// MaxExtension bounds ack deadline extension. Default: 15 minutes.
	MaxExtension time.Duration

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// PubSubHandler feeds Pub/Sub job messages to a JobHandler.
type PubSubHandler struct {
	client       *pubsub.Client
	subscriber   *pubsub.Subscriber
	subscription string
	handler      JobHandler
	clock        clockwork.Clock
	logger       zerolog.Logger
}

// NewPubSubHandler connects to Pub/Sub and binds the subscription.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	if cfg.Handler == nil {
		return nil, errors.New("pubsub handler requires a job handler")
	}
	if cfg.MaxOutstanding <= 0 {
		cfg.MaxOutstanding = 4
	}
	if cfg.MaxExtension <= 0 {
		cfg.MaxExtension = 15 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
	subscriber.ReceiveSettings.MaxExtension = cfg.MaxExtension

	return &PubSubHandler{
		client:       client,
		subscriber:   subscriber,
		subscription: cfg.SubscriptionName,
		handler:      cfg.Handler,
		clock:        cfg.Clock,
		logger:       cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start receives messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Msg("receiving job messages")
	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.Data) == ack {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handle(ctx context.Context, id string, data []byte) ackDecision {
	start := h.clock.Now()
	logger := h.logger.With().Str("message_id", id).Logger()

	err := h.handler.Handle(ctx, data)
	decision := decide(err)
	switch {
	case err == nil:
		logger.Info().Dur("duration", h.clock.Since(start)).Msg("job completed")
	case decision == ack:
		logger.Warn().Err(err).Msg("dropping job message")
	default:
		logger.Error().Err(err).Msg("job failed, redelivering")
	}
	return decision
}
