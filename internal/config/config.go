// Package config loads the fleet process configuration from YAML.
package config

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-fleet/internal/commission_fee"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type PersistenceConfig struct {
	Driver string `yaml:"driver" json:"driver" jsonschema:"title=Driver,enum=memory,enum=duckdb" validate:"required,oneof=memory duckdb"`
	// DSN is the DuckDB database path. Empty or ":memory:" keeps data in memory.
	DSN string `yaml:"dsn" json:"dsn" jsonschema:"title=DSN,description=DuckDB database path"`
}

type NotifierConfig struct {
	WebhookURL string        `yaml:"webhook_url" json:"webhook_url" jsonschema:"title=Webhook URL" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" jsonschema:"title=Timeout"`
}

type RiskConfig struct {
	// FailOpen allows trading when a limit lookup fails. Defaults to false.
	FailOpen bool `yaml:"fail_open" json:"fail_open" jsonschema:"title=Fail Open,description=Allow entries when a risk limit cannot be evaluated"`
}

type EngineConfig struct {
	ErrorBackoffBase    time.Duration `yaml:"error_backoff_base" json:"error_backoff_base" validate:"gt=0"`
	ErrorBackoffMax     time.Duration `yaml:"error_backoff_max" json:"error_backoff_max" validate:"gtefield=ErrorBackoffBase"`
	ErrorResetAfter     time.Duration `yaml:"error_reset_after" json:"error_reset_after" validate:"gt=0"`
	EntitlementInterval time.Duration `yaml:"entitlement_interval" json:"entitlement_interval" validate:"gt=0"`
	StopTimeout         time.Duration `yaml:"stop_timeout" json:"stop_timeout" validate:"gt=0"`
	LogTailSize         int           `yaml:"log_tail_size" json:"log_tail_size" validate:"gte=1"`
	// LoopDelayOverride replaces the per-timeframe loop delay when set.
	LoopDelayOverride time.Duration `yaml:"loop_delay_override" json:"loop_delay_override" validate:"gte=0"`
}

type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold" validate:"gte=1"`
	Window           time.Duration `yaml:"window" json:"window" validate:"gt=0"`
	Cooldown         time.Duration `yaml:"cooldown" json:"cooldown" validate:"gt=0"`
}

type JobsConfig struct {
	ProgressBuffer     int `yaml:"progress_buffer" json:"progress_buffer" validate:"gte=1"`
	SearchParallelism  int `yaml:"search_parallelism" json:"search_parallelism" validate:"gte=1"`
	DefaultSearchTrial int `yaml:"default_search_trials" json:"default_search_trials" validate:"gte=1"`
}

type BinanceConfig struct {
	Testnet bool `yaml:"testnet" json:"testnet"`
}

type ExchangeConfig struct {
	RateLimitPerSecond float64               `yaml:"rate_limit_per_second" json:"rate_limit_per_second" validate:"gte=0"`
	Burst              int                   `yaml:"burst" json:"burst" validate:"gte=0"`
	Binance            BinanceConfig         `yaml:"binance" json:"binance"`
	Broker             commission_fee.Broker `yaml:"broker" json:"broker" jsonschema:"title=Broker,description=Fee model shared by paper trading and backtests"`
	PaperBalance       float64               `yaml:"paper_balance" json:"paper_balance" validate:"gt=0"`
}

type ServerConfig struct {
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint" jsonschema:"title=OTLP Endpoint,description=OTLP/HTTP metrics endpoint; empty disables export"`
	ServiceName  string `yaml:"service_name" json:"service_name"`
}

// WorkerConfig is a worker started when the process boots.
type WorkerConfig struct {
	Tenant   string               `yaml:"tenant" json:"tenant" validate:"required"`
	ConfigID string               `yaml:"config_id" json:"config_id"`
	Strategy types.StrategyConfig `yaml:"strategy" json:"strategy"`
}

type Config struct {
	LogLevel    string            `yaml:"log_level" json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error" validate:"oneof=debug info warn error"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Notifier    NotifierConfig    `yaml:"notifier" json:"notifier"`
	Risk        RiskConfig        `yaml:"risk" json:"risk"`
	Engine      EngineConfig      `yaml:"engine" json:"engine"`
	Circuit     CircuitConfig     `yaml:"circuit" json:"circuit"`
	Jobs        JobsConfig        `yaml:"jobs" json:"jobs"`
	Exchange    ExchangeConfig    `yaml:"exchange" json:"exchange"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry"`
	Workers     []WorkerConfig    `yaml:"workers" json:"workers" validate:"dive"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() Config {
	return Config{
		LogLevel:    "info",
		Persistence: PersistenceConfig{Driver: "memory"},
		Notifier:    NotifierConfig{Timeout: 10 * time.Second},
		Engine: EngineConfig{
			ErrorBackoffBase:    10 * time.Second,
			ErrorBackoffMax:     300 * time.Second,
			ErrorResetAfter:     600 * time.Second,
			EntitlementInterval: 5 * time.Minute,
			StopTimeout:         5 * time.Second,
			LogTailSize:         200,
		},
		Circuit: CircuitConfig{
			FailureThreshold: 3,
			Window:           60 * time.Second,
			Cooldown:         120 * time.Second,
		},
		Jobs: JobsConfig{
			ProgressBuffer:     64,
			SearchParallelism:  4,
			DefaultSearchTrial: 50,
		},
		Exchange: ExchangeConfig{
			RateLimitPerSecond: 10,
			Burst:              5,
			Broker:             commission_fee.BrokerBinanceFutures,
			PaperBalance:       10000,
		},
		Server:    ServerConfig{Listen: "127.0.0.1:8080"},
		Telemetry: TelemetryConfig{ServiceName: "argo-fleet"},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate validates the Config struct and every configured worker.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	for i := range c.Workers {
		if err := c.Workers[i].Strategy.Validate(); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid worker %d (%s)", i, c.Workers[i].Tenant)
		}
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration such as 30s or 5m",
				}
			}

			if strings.Contains(t.String(), "commission_fee.Broker") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "argo-fleet-config"
	schema.Description = "Configuration schema for the argo fleet process"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates an indented JSON schema string for the Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config schema", err)
	}

	return string(schemaBytes), nil
}
