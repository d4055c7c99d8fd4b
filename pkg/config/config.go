package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"5" validate:"gt=0"`
			Burst int     `yaml:"burst" default:"10" validate:"min=1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"aria.diagnostics"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Cleaning struct {
		SpeedLimitKnots           float64 `yaml:"speed_limit_knots" default:"20" validate:"gt=0"`
		GroundAltitudeToleranceFt float64 `yaml:"ground_altitude_tolerance_ft" default:"50" validate:"gte=0"`
		MinPoints                 int     `yaml:"min_points" default:"3" validate:"min=1"`
	} `yaml:"cleaning"`
	Detection struct {
		Mode                string        `yaml:"mode" default:"local" validate:"oneof=local remote"`
		Facility            string        `yaml:"facility" default:"UNKNOWN"`
		LateralThresholdNM  float64       `yaml:"lateral_threshold_nm" default:"1" validate:"gt=0"`
		VerticalThresholdFt float64       `yaml:"vertical_threshold_ft" default:"1000" validate:"gt=0"`
		MaxTimeGap          time.Duration `yaml:"max_time_gap" default:"10s"`
		RemoteURL           string        `yaml:"remote_url" validate:"required_if=Mode remote"`
		RemoteTimeout       time.Duration `yaml:"remote_timeout" default:"3s"`
		RemoteAttempts      int           `yaml:"remote_attempts" default:"3" validate:"min=1"`
	} `yaml:"detection"`
	Output struct {
		Sinks []string `yaml:"sinks" default:"[\"kafka\",\"alertfeed\"]" validate:"dive,oneof=kafka clickhouse alertfeed"`
		Dedup struct {
			Enabled bool          `yaml:"enabled" default:"true"`
			TTL     time.Duration `yaml:"ttl" default:"24h"`
		} `yaml:"dedup"`
		Retry struct {
			Enabled    bool          `yaml:"enabled" default:"true"`
			BufferSize int           `yaml:"buffer_size" default:"1000" validate:"min=1"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"retry"`
	} `yaml:"output"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]" validate:"min=1"`
		PairsTopic   string   `yaml:"pairs_topic" default:"aria.track_pairs" validate:"required"`
		EventsTopic  string   `yaml:"events_topic" default:"aria.airborne_events" validate:"required"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"5ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled" default:"true"`
			GroupID    string        `yaml:"group_id" default:"aria-pairs"`
			Workers    int           `yaml:"workers" default:"4" validate:"min=1"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"aria.track_pairs.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"aria"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		EventsTable      string        `yaml:"events_table" default:"airborne_events"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		Compression      string        `yaml:"compression" default:"lz4" validate:"oneof=none lz4 zstd"`
		RecentCache      struct {
			Enabled bool          `yaml:"enabled" default:"true"`
			TTL     time.Duration `yaml:"ttl" default:"2s" validate:"gt=0"`
		} `yaml:"recent_cache"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix" default:"aria:"`
		PoolSize  int    `yaml:"pool_size" default:"10" validate:"min=1"`
		MinIdle   int    `yaml:"min_idle" default:"2" validate:"gte=0"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse builds a Config from YAML bytes. Missing keys take their defaults.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML, overrides with environment variables,
// then validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}

	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected keys from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_PAIRS_TOPIC"); v != "" {
		c.Kafka.PairsTopic = v
	}
	if v := getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		c.Kafka.EventsTopic = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("DETECTION_MODE"); v != "" {
		c.Detection.Mode = v
	}
	if v := getenv("REMOTE_DETECTOR_URL"); v != "" {
		c.Detection.RemoteURL = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.HasSink("clickhouse") && !c.ClickHouse.Enabled {
		return fmt.Errorf("output.sinks lists clickhouse but clickhouse.enabled is false")
	}
	return nil
}

// HasSink reports whether name is one of the configured output sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Output.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
