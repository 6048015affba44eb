package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AddConfigPath("/app/configs")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("queue.nats_url", "NATS_URL", "APP_QUEUE_NATS_URL")
	v.BindEnv("queue.rabbitmq_url", "RABBITMQ_URL", "APP_QUEUE_RABBITMQ_URL")
	v.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	v.BindEnv("model_service.base_url", "MODEL_SERVICE_URL", "APP_MODEL_SERVICE_BASE_URL")
	v.BindEnv("model_service.api_key", "MODEL_SERVICE_API_KEY", "APP_MODEL_SERVICE_API_KEY")
	v.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "energy-sentinel")
	v.SetDefault("app.version", "v1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.idle_timeout", 120*time.Second)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", 9090)

	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("queue.driver", "none")

	v.SetDefault("jwt.issuer", "energy-sentinel")
	v.SetDefault("jwt.token_ttl", time.Hour)

	v.SetDefault("model_service.timeout", 15*time.Second)

	v.SetDefault("anomaly.threshold", 3.0)
	v.SetDefault("anomaly.min_samples", 10)
	v.SetDefault("anomaly.default_window", 7*24*time.Hour)
	v.SetDefault("anomaly.lock_ttl", 5*time.Minute)

	v.SetDefault("sweep.enabled", false)
	v.SetDefault("sweep.interval", time.Hour)
	v.SetDefault("sweep.concurrency", 5)

	v.SetDefault("ingestion.max_upload_size", 50*1024*1024)
	v.SetDefault("ingestion.claim_unowned_devices", false)
	v.SetDefault("ingestion.max_consecutive_store_errors", 25)

	v.SetDefault("cache.device_ttl", time.Minute)
	v.SetDefault("cache.prediction_ttl", 10*time.Minute)

	v.SetDefault("opentelemetry.service_name", "energy-sentinel")
	v.SetDefault("opentelemetry.jaeger_endpoint", "http://jaeger:14268/api/traces")
	v.SetDefault("opentelemetry.sampler_ratio", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("vault.path", "secret/data/energy-sentinel")
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Anomaly.Threshold <= 0 {
		return fmt.Errorf("anomaly.threshold must be positive, got %v", c.Anomaly.Threshold)
	}
	if c.Anomaly.MinSamples < 2 {
		return fmt.Errorf("anomaly.min_samples must be at least 2, got %d", c.Anomaly.MinSamples)
	}
	if c.Sweep.Concurrency < 1 {
		return fmt.Errorf("sweep.concurrency must be at least 1, got %d", c.Sweep.Concurrency)
	}
	switch c.Queue.Driver {
	case "", "none", "nats", "rabbitmq":
	default:
		return fmt.Errorf("unknown queue.driver %q", c.Queue.Driver)
	}
	return nil
}
