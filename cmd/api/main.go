package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfabric/options-engine/config"
	"github.com/quantfabric/options-engine/internal/batch"
	"github.com/quantfabric/options-engine/internal/kafka"
	"github.com/quantfabric/options-engine/internal/pricing"
	"github.com/quantfabric/options-engine/internal/stream"
	"github.com/quantfabric/options-engine/pkg/api"
	"github.com/quantfabric/options-engine/pkg/metrics"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// ResultEnvelope is the shape the pricing worker publishes on the results
// topic; the API relays it to websocket subscribers.
type ResultEnvelope struct {
	Contract string      `json:"contract"`
	Result   interface{} `json:"result"`
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger("api.main").Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("api.main")
	log.Infof("Starting %s API service", cfg.App.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder()

	// Pricing core
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
	batchEngine := batch.NewEngine(batch.Config{Workers: cfg.Worker.Workers}, pricer, greeks, solver)

	// Stream hub for pricing updates
	hub := stream.NewHub()
	go hub.Run(ctx)

	// Relay priced results from the worker onto the stream hub
	kafkaClient, err := kafka.NewClient(&kafka.Config{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID + "-api",
		AutoOffsetReset: "latest",
		SessionTimeout:  cfg.Kafka.Consumer.SessionTimeout,
		ProducerAcks:    cfg.Kafka.Producer.Acks,
		BatchTimeout:    cfg.Kafka.Producer.BatchTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}

	resultsConsumer, err := kafkaClient.NewConsumer(cfg.Kafka.Topics.PricingResults, nil)
	if err != nil {
		log.Fatalf("Failed to create results consumer: %v", err)
	}

	go func() {
		log.Infof("Relaying priced results from topic %s", cfg.Kafka.Topics.PricingResults)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				message, err := resultsConsumer.ConsumeMessage(ctx, cfg.Kafka.Consumer.PollTimeout)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Errorf("Error consuming result message: %v", err)
					continue
				}
				if message == nil {
					continue
				}

				var envelope ResultEnvelope
				if err := json.Unmarshal(message.Value, &envelope); err != nil {
					log.Errorf("Failed to unmarshal result envelope: %v", err)
					continue
				}

				hub.Publish(stream.Update{Contract: envelope.Contract, Payload: envelope.Result})
				recorder.SetStreamClients(hub.ClientCount())
			}
		}
	}()

	handlers := api.CreateHandlers(pricer, greeks, solver, batchEngine, hub, recorder)
	apiServer := api.NewServer(
		api.Config{
			Host:         cfg.API.Host,
			Port:         cfg.API.Port,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			RateLimit:    cfg.API.RateLimit,
			RateBurst:    cfg.API.RateBurst,
			Environment:  cfg.App.Environment,
		},
		handlers,
		recorder,
	)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Errorf("API server error: %v", err)
			cancel()
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}

	cancel()
	time.Sleep(100 * time.Millisecond)

	if err := resultsConsumer.Close(); err != nil {
		log.Errorf("Results consumer shutdown error: %v", err)
	}
	if err := kafkaClient.Close(); err != nil {
		log.Errorf("Kafka client shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
}
