package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config for the whole application
type Config struct {
	App     AppConfig
	API     APIConfig
	Kafka   KafkaConfig
	Pricing PricingConfig
	Solver  SolverConfig
	Worker  WorkerConfig
	Metrics MetricsConfig
}

// General application configuration
type AppConfig struct {
	Name        string
	Environment string
	LogLevel    string
}

// Configuration for the API server
type APIConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       int
	RateBurst       int
}

// Configuration for Kafka
type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	Consumer KafkaConsumerConfig
	Producer KafkaProducerConfig
	Topics   KafkaTopicsConfig
}

// Kafka consumer configuration
type KafkaConsumerConfig struct {
	AutoOffsetReset string
	SessionTimeout  time.Duration
	PollTimeout     time.Duration
}

// Kafka producer configuration
type KafkaProducerConfig struct {
	Acks         string
	BatchTimeout time.Duration
}

// Kafka topics configuration
type KafkaTopicsConfig struct {
	PricingRequests string
	PricingResults  string
}

// Configuration for pricing input bounds
type PricingConfig struct {
	MinRate                float64
	MaxRate                float64
	MaxVolatility          float64
	WarnVolatility         float64
	WarnExpiryYears        float64
	IVConsistencyThreshold float64
}

// Configuration for the implied-volatility solver
type SolverConfig struct {
	Tolerance       float64
	MaxIterations   int
	MinVolatility   float64
	MaxVolatility   float64
	FallbackGuesses []float64
	RobustMinIV     float64
	RobustMaxIV     float64
}

// Configuration for the batch/worker layer
type WorkerConfig struct {
	Workers int
}

// Configuration for metrics
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from ./config/config.yaml (when present) and
// environment variables prefixed OPTIONS.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; the defaults plus env cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("OPTIONS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "options-engine")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.log_level", "info")

	// API defaults
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.read_timeout", "10s")
	viper.SetDefault("api.write_timeout", "10s")
	viper.SetDefault("api.shutdown_timeout", "30s")
	viper.SetDefault("api.rate_limit", 100)
	viper.SetDefault("api.rate_burst", 200)

	// Kafka defaults
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "options-engine")
	viper.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	viper.SetDefault("kafka.consumer.session_timeout", "30s")
	viper.SetDefault("kafka.consumer.poll_timeout", "100ms")
	viper.SetDefault("kafka.producer.acks", "all")
	viper.SetDefault("kafka.producer.batch_timeout", "5ms")
	viper.SetDefault("kafka.topics.pricing_requests", "pricing.requests")
	viper.SetDefault("kafka.topics.pricing_results", "pricing.results")

	// Pricing defaults
	viper.SetDefault("pricing.min_rate", -0.10)
	viper.SetDefault("pricing.max_rate", 0.50)
	viper.SetDefault("pricing.max_volatility", 5.0)
	viper.SetDefault("pricing.warn_volatility", 2.0)
	viper.SetDefault("pricing.warn_expiry_years", 10.0)
	viper.SetDefault("pricing.iv_consistency_threshold", 0.20)

	// Solver defaults
	viper.SetDefault("solver.tolerance", 1e-4)
	viper.SetDefault("solver.max_iterations", 100)
	viper.SetDefault("solver.min_volatility", 0.001)
	viper.SetDefault("solver.max_volatility", 5.0)
	viper.SetDefault("solver.fallback_guesses", []float64{0.20, 0.10, 0.50, 0.05, 1.00})
	viper.SetDefault("solver.robust_min_iv", 0.01)
	viper.SetDefault("solver.robust_max_iv", 5.0)

	// Worker defaults
	viper.SetDefault("worker.workers", 8)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
}
