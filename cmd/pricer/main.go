package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfabric/options-engine/config"
	"github.com/quantfabric/options-engine/internal/batch"
	"github.com/quantfabric/options-engine/internal/kafka"
	"github.com/quantfabric/options-engine/internal/pricing"
	"github.com/quantfabric/options-engine/pkg/metrics"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// PricingMessage is one request consumed from the pricing topic. Contract
// identifies the instrument so downstream consumers can correlate results.
type PricingMessage struct {
	Contract string `json:"contract"`
	batch.Request
}

// ResultEnvelope is published on the results topic, keyed by contract.
type ResultEnvelope struct {
	Contract string       `json:"contract"`
	Result   batch.Result `json:"result"`
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger("pricer.main").Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("pricer.main")
	log.Infof("Starting %s pricing worker", cfg.App.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Infof("Serving metrics on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	pricer := pricing.NewPricer(pricing.PricerConfig{
		MinRate:                cfg.Pricing.MinRate,
		MaxRate:                cfg.Pricing.MaxRate,
		MaxVol:                 cfg.Pricing.MaxVolatility,
		WarnVol:                cfg.Pricing.WarnVolatility,
		WarnExpiryYears:        cfg.Pricing.WarnExpiryYears,
		Epsilon:                1e-10,
		IVConsistencyThreshold: cfg.Pricing.IVConsistencyThreshold,
	})
	greeks := pricing.NewEngine(pricer)
	solver := pricing.NewSolver(pricer, greeks, pricing.SolverConfig{
		Tolerance:       cfg.Solver.Tolerance,
		MaxIterations:   cfg.Solver.MaxIterations,
		MinVol:          cfg.Solver.MinVolatility,
		MaxVol:          cfg.Solver.MaxVolatility,
		VegaFloor:       1e-10,
		FallbackGuesses: cfg.Solver.FallbackGuesses,
		RobustMinIV:     cfg.Solver.RobustMinIV,
		RobustMaxIV:     cfg.Solver.RobustMaxIV,
	})
	engine := batch.NewEngine(batch.Config{Workers: cfg.Worker.Workers}, pricer, greeks, solver)

	kafkaClient, err := kafka.NewClient(&kafka.Config{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		AutoOffsetReset: cfg.Kafka.Consumer.AutoOffsetReset,
		SessionTimeout:  cfg.Kafka.Consumer.SessionTimeout,
		ProducerAcks:    cfg.Kafka.Producer.Acks,
		BatchTimeout:    cfg.Kafka.Producer.BatchTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}

	consumer, err := kafkaClient.NewConsumer(cfg.Kafka.Topics.PricingRequests, nil)
	if err != nil {
		log.Fatalf("Failed to create request consumer: %v", err)
	}

	producer, err := kafkaClient.NewProducer(cfg.Kafka.Topics.PricingResults)
	if err != nil {
		log.Fatalf("Failed to create result producer: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Infof("Consuming pricing requests from topic %s", cfg.Kafka.Topics.PricingRequests)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			message, err := consumer.ConsumeMessage(ctx, cfg.Kafka.Consumer.PollTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Errorf("Error consuming pricing request: %v", err)
				continue
			}
			if message == nil {
				continue
			}

			var request PricingMessage
			if err := json.Unmarshal(message.Value, &request); err != nil {
				log.Errorf("Failed to unmarshal pricing request: %v", err)
				recorder.RecordWorkerMessage("unmarshal_error")
				continue
			}

			start := time.Now()
			results, err := engine.EvaluateAll(ctx, []batch.Request{request.Request})
			if err != nil {
				// Only cancellation reaches here; per-contract failures
				// come back inside the result
				return
			}

			envelope := ResultEnvelope{Contract: request.Contract, Result: results[0]}
			payload, err := json.Marshal(envelope)
			if err != nil {
				log.Errorf("Failed to marshal result envelope: %v", err)
				recorder.RecordWorkerMessage("marshal_error")
				continue
			}

			if err := producer.ProduceMessage(ctx, []byte(request.Contract), payload, nil); err != nil {
				log.Errorf("Failed to produce result for %s: %v", request.Contract, err)
				recorder.RecordWorkerMessage("produce_error")
				continue
			}

			recorder.RecordWorkerMessage("priced")
			log.Debugf("Priced %s in %v", request.Contract, time.Since(start))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Infof("Received signal %v, initiating shutdown", sig)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("Timed out waiting for worker loop to stop")
	}

	if err := producer.Close(); err != nil {
		log.Errorf("Producer shutdown error: %v", err)
	}
	if err := consumer.Close(); err != nil {
		log.Errorf("Consumer shutdown error: %v", err)
	}
	if err := kafkaClient.Close(); err != nil {
		log.Errorf("Kafka client shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
}
