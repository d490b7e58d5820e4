package config

import "time"

type HTTPConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`
}

type RedisConfig struct {
	// Enabled switches the reply cache from in-process LRU to Redis.
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// BusConfig selects and tunes the message transport.
type BusConfig struct {
	// Transport is one of stub, local, kafka, redis.
	Transport string `env:"TRANSPORT" envDefault:"local"`
	// ProfilesFile points at a YAML file of named connection profiles.
	ProfilesFile string `env:"PROFILES_FILE" envDefault:"profiles.yaml"`
	// MaxInFlight caps concurrent handler invocations per subscription.
	MaxInFlight int `env:"MAX_IN_FLIGHT" envDefault:"2"`

	ClientID            string        `env:"CLIENT_ID" envDefault:"busrelay"`
	NackResendSleep     time.Duration `env:"NACK_RESEND_SLEEP" envDefault:"5s"`
	ReconnectRetrySleep time.Duration `env:"RECONNECT_RETRY_SLEEP" envDefault:"10s"`
	// RedisBlock is how long one XREADGROUP call waits for new entries.
	RedisBlock time.Duration `env:"REDIS_BLOCK" envDefault:"2s"`
	// RedisClaimIdle is how long an entry must sit unacked on another
	// consumer of the group before this consumer takes it over.
	RedisClaimIdle time.Duration `env:"REDIS_CLAIM_IDLE" envDefault:"30s"`
	// LocalBuffer is the gochannel output buffer per subscriber.
	LocalBuffer int64 `env:"LOCAL_BUFFER" envDefault:"64"`
}

// RelayConfig describes this process as a party on the bus.
type RelayConfig struct {
	// Name is used as the sender of envelopes published through the HTTP API.
	Name string `env:"NAME" envDefault:"relay"`
	// Endpoint is the profile this process subscribes to for replies.
	Endpoint   string        `env:"ENDPOINT" envDefault:"relay"`
	ReplyTTL   time.Duration `env:"REPLY_TTL" envDefault:"15m"`
	ReplyLimit int           `env:"REPLY_LIMIT" envDefault:"10000"`
	// WebhookURL, when set, receives every envelope delivered to Endpoint.
	WebhookURL     string        `env:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
}

// ObservabilityConfig Observability / telemetry configuration
type ObservabilityConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"busrelay"`
	ServiceEnv  string `env:"SERVICE_ENV" envDefault:"Development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	// e.g. "otel-collector:4317"
	OtelEndpoint string `env:"ENDPOINT"`
	// How often bus counters are pushed to the collector.
	MetricInterval time.Duration `env:"METRIC_INTERVAL" envDefault:"10s"`
}

type Config struct {
	// Global environment: Development, Staging, Production...
	Environment string `env:"APP_ENV" envDefault:"Development"`

	HTTP          HTTPConfig          `envPrefix:"HTTP_"`
	Redis         RedisConfig         `envPrefix:"REDIS_"`
	Bus           BusConfig           `envPrefix:"BUS_"`
	Relay         RelayConfig         `envPrefix:"RELAY_"`
	Observability ObservabilityConfig `envPrefix:"OTEL_"`
}
