package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWrapper is the broker envelope: the sensor payload travels as an
// escaped JSON string, with the device credential inside it as api_key.
type KafkaWrapper struct {
	Payload string `json:"payload"`
	// ignore other fields if not needed
}

type kafkaPayload struct {
	APIKey string `json:"api_key"`
}

// ProcessMessage runs one broker message through the same pipeline as
// POST /ingest. Rejected messages are logged and skipped; the consumer never
// stops over a bad sample.
func (s *Service) ProcessMessage(ctx context.Context, m kafka.Message) {
	var wrapper KafkaWrapper
	if err := jsonFast.Unmarshal(m.Value, &wrapper); err != nil {
		s.logger.Errorw("failed to parse wrapper message", "error", err)
		return
	}

	var meta kafkaPayload
	if err := jsonFast.Unmarshal([]byte(wrapper.Payload), &meta); err != nil {
		s.logger.Errorw("failed to parse sensor payload", "error", err)
		return
	}

	result, err := s.Ingest(ctx, meta.APIKey, []byte(wrapper.Payload))
	if err != nil {
		s.logger.Errorw("broker ingest rejected", "error", err, "offset", m.Offset)
		return
	}

	if result.Alert != "" {
		s.logger.Infow("alert raised from broker sample",
			"device", result.DeviceID, "type", result.Alert)
	}
}

// consumeLoop reads messages until the context is canceled.
func (s *Service) consumeLoop(ctx context.Context, reader *kafka.Reader) error {
	if reader != nil {
		cfg := reader.Config()
		s.logger.Infow("starting Kafka consumer", "brokers", cfg.Brokers, "topic", cfg.Topic, "groupID", cfg.GroupID)
	}

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("consumer context canceled, stopping consumer loop")
				return nil
			}
			if errors.Is(err, io.EOF) {
				s.logger.Debug("Kafka EOF reached, waiting for new messages...")
				time.Sleep(2 * time.Second)
				continue
			}
			return fmt.Errorf("error reading message: %w", err)
		}

		s.ProcessMessage(ctx, m)
	}
}

// StartConsumer runs the consumer with reconnect/backoff until the context
// is canceled.
func (s *Service) StartConsumer(ctx context.Context, reader *kafka.Reader) {
	if reader == nil {
		s.logger.Warn("Kafka reader is nil, consumer not started")
		return
	}

	backoff := 5 * time.Second
	maxBackoff := 2 * time.Minute

	cfg := reader.Config()
	s.logger.Infow("connecting to Kafka", "brokers", cfg.Brokers, "topic", cfg.Topic, "groupID", cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Kafka consumer context canceled, stopping")
			return
		default:
		}

		consumeErr := s.consumeLoop(ctx, reader)

		if consumeErr != nil {
			if errors.Is(consumeErr, context.Canceled) || errors.Is(consumeErr, context.DeadlineExceeded) {
				s.logger.Info("Kafka consumer stopped due to context cancellation")
				return
			}

			s.logger.Warnw("Kafka consumer error, retrying", "error", consumeErr, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue // retry consumeLoop with the same reader
		}
		return
	}
}
