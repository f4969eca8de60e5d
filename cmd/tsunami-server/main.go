// Command tsunami-server serves tsunami predictions over HTTP and, when
// KAFKA_ENABLED is set, scores earthquake events from Kafka.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/YuminosukeSato/tsunamiml/internal/adapter/http"
	kafkaadapter "github.com/YuminosukeSato/tsunamiml/internal/adapter/kafka"
	"github.com/YuminosukeSato/tsunamiml/internal/catalog"
	"github.com/YuminosukeSato/tsunamiml/internal/config"
	"github.com/YuminosukeSato/tsunamiml/internal/inference"
	"github.com/YuminosukeSato/tsunamiml/internal/observability"
	"github.com/YuminosukeSato/tsunamiml/internal/stream"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.GetLogger().Error("failed to load config", err)
		os.Exit(1)
	}

	provider, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.GetLogger().Error("failed to set up logger", err)
		os.Exit(1)
	}
	logger := provider.GetLoggerWithName("server")
	metrics := observability.NewMetrics()

	deps := httpadapter.Deps{Gatherer: prometheus.DefaultGatherer}

	var predictor *inference.Predictor
	if cfg.ModelPath != "" {
		predictor, err = inference.Load(cfg.ModelPath, inference.WithObserver(metrics))
		if err != nil {
			logger.Error("failed to load model", err, log.ArtifactKey, cfg.ModelPath)
			os.Exit(1)
		}
		deps.Predictor = predictor
		logger.Info("model loaded", log.ArtifactKey, cfg.ModelPath)
	} else {
		logger.Warn("TSUNAMI_MODEL_PATH not set, predictions disabled")
	}

	if cfg.CatalogPath != "" {
		cat, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			logger.Error("failed to load catalog", err, "path", cfg.CatalogPath)
			os.Exit(1)
		}
		deps.Catalog = cat
		logger.Info("catalog loaded", "path", cfg.CatalogPath, log.SamplesKey, cat.Len())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		done   = make(chan struct{})
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, provider.GetLoggerWithName("kafka"))
		writer = kafkaadapter.NewWriter(cfg, provider.GetLoggerWithName("kafka"))
		s := stream.New(reader, predictor, writer, metrics, cfg.BatchSize,
			stream.WithLogger(provider.GetLoggerWithName("stream")))
		deps.Ready = httpadapter.ReadinessFunc(func(ctx context.Context) error {
			if predictor == nil {
				return errors.New("model not loaded")
			}
			return s.CheckReadiness(ctx)
		})

		go func() {
			defer close(done)
			if err := s.Run(ctx); err != nil {
				logger.Error("stream error", err)
			}
		}()
	} else {
		close(done)
		logger.Info("kafka scoring disabled")
	}

	deps.Logger = provider.GetLoggerWithName("http")
	srv := httpadapter.NewServer(cfg.HTTPAddr, deps)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("stream did not stop before shutdown timeout")
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", err)
		}
	}

	logger.Info("shutdown complete")
}
