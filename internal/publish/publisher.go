package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CoverLedger/internal/engine"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Publisher pushes committed transitions to NATS for downstream consumers.
// Subjects follow the pattern: cover.ledger.events.{event_type}
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
	log       zerolog.Logger
}

// OutboundEvent is the wire shape published to NATS
type OutboundEvent struct {
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	Owner     *string     `json:"owner,omitempty"`
	Asset     *string     `json:"asset,omitempty"`
	Payload   interface{} `json:"payload"`
	StateHash []byte      `json:"state_hash"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan engine.Output, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		log:       log,
	}
}

// Run starts the publisher loop. Publish failures are non-fatal; consumers
// can always read the event log directly.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}

			if err := p.publish(ctx, out); err != nil {
				p.log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out engine.Output) error {
	env := out.Envelope

	evt := OutboundEvent{
		Sequence:  env.Sequence,
		EventType: env.EventType.String(),
		Payload:   env.Payload,
		StateHash: env.StateHash[:],
		Timestamp: env.Timestamp,
	}
	if env.Owner != nil {
		s := env.Owner.Hex()
		evt.Owner = &s
	}
	if env.Asset != nil {
		s := env.Asset.Hex()
		evt.Asset = &s
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("cover.ledger.events.%s", evt.EventType)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "COVER_LEDGER_EVENTS",
		Subjects:  []string{"cover.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Info().Str("stream", "COVER_LEDGER_EVENTS").Msg("ensured outbound stream")
	return nil
}
