package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridwatch/internal/config"
	"gridwatch/internal/ingest"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaReader builds the consumer for the broker ingest source, or nil
// when no brokers are configured.
func NewKafkaReader(cfg *config.Config) (*kafka.Reader, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}

	tlsCfg, err := cfg.CreateKafkaTLSConfig()
	if err != nil {
		return nil, err
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.KafkaBrokers,
		Topic:             cfg.KafkaTopic,
		GroupID:           cfg.KafkaGroupID,
		StartOffset:       kafka.FirstOffset,
		ReadLagInterval:   -1,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		Dialer: &kafka.Dialer{
			TLS: tlsCfg,
		},
	}), nil
}

// Run blocks until a termination signal, then shuts the HTTP server and the
// optional Kafka consumer down gracefully.
func Run(ctx context.Context, svc *ingest.Service, srv *http.Server, reader *kafka.Reader, logger *zap.SugaredLogger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var done chan struct{}
	if reader != nil {
		done = make(chan struct{})
		defer reader.Close()
		go func() {
			defer close(done)
			svc.StartConsumer(ctx, reader)
		}()
	}

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if done != nil {
		select {
		case sig := <-sigChan:
			logger.Infow("signal received, shutting down", "signal", sig)
			cancel()
		case <-done:
			logger.Info("Kafka consumer finished, exiting")
		}
	} else {
		sig := <-sigChan
		logger.Infow("signal received, shutting down", "signal", sig)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("HTTP server shutdown error", "error", err)
	}

	if done != nil {
		// Wait for consumer goroutine to finish
		select {
		case <-done:
			logger.Info("shutdown completed")
		case <-time.After(30 * time.Second):
			logger.Warn("timeout waiting for Kafka consumer to stop")
		}
	}
}
