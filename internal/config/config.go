package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the simulator's top-level configuration, loaded by Load from
// (in ascending precedence) built-in defaults, an optional config.yaml,
// and STATEKIT_-prefixed environment variables.
type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Runner  RunnerConfig
	Kernel  KernelConfig
	Metrics MetricsConfig
	Auth    AuthConfig
	LogLevel string
}

// ServerConfig configures the admin HTTP/websocket surface (internal/admin).
type ServerConfig struct {
	Host         string
	Port         int
	AdminPort    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig configures the Redis Streams connection the trace sink
// (internal/trace) publishes kernel events to.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RunnerConfig tunes internal/runner, the worker-pool-style convenience
// layer that runs a fixed number of kernel tasks draining a job channel.
type RunnerConfig struct {
	ID                string
	Concurrency       int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ShutdownTimeout   time.Duration
}

// KernelConfig tunes the kernel core and its trace sink: tick resolution,
// priority bounds, and the Redis stream the trace events are published to.
type KernelConfig struct {
	TraceStreamPrefix  string
	TraceConsumerGroup string
	MaxTraceBacklog    int64
	TraceBlockTimeout  time.Duration
	TraceClaimMinIdle  time.Duration
	TickGranularity    time.Duration
	DefaultPriority    int
	RetryMaxAttempts   int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryBackoffFactor  float64
	RateLimitRPS        int
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	APIKeys   []string
}

// Load reads configuration from config.yaml (searched in ., ./config, and
// /etc/statekit) plus STATEKIT_-prefixed environment variables, falling
// back to built-in defaults for anything unset. A missing config file is
// not an error; any other read failure is.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/statekit")

	setDefaults()

	viper.SetEnvPrefix("STATEKIT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.adminport", 8081)
	viper.SetDefault("server.readtimeout", 30*time.Second)
	viper.SetDefault("server.writetimeout", 30*time.Second)
	viper.SetDefault("server.idletimeout", 120*time.Second)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolsize", 100)
	viper.SetDefault("redis.minidleconns", 10)
	viper.SetDefault("redis.maxretries", 3)
	viper.SetDefault("redis.dialtimeout", 5*time.Second)
	viper.SetDefault("redis.readtimeout", 3*time.Second)
	viper.SetDefault("redis.writetimeout", 3*time.Second)

	viper.SetDefault("runner.id", "")
	viper.SetDefault("runner.concurrency", 10)
	viper.SetDefault("runner.heartbeatinterval", 5*time.Second)
	viper.SetDefault("runner.heartbeattimeout", 15*time.Second)
	viper.SetDefault("runner.shutdowntimeout", 30*time.Second)

	viper.SetDefault("kernel.tracestreamprefix", "kernel")
	viper.SetDefault("kernel.traceconsumergroup", "admin")
	viper.SetDefault("kernel.maxtracebacklog", 1000000)
	viper.SetDefault("kernel.traceblocktimeout", 5*time.Second)
	viper.SetDefault("kernel.traceclaimminidle", 30*time.Second)
	viper.SetDefault("kernel.tickgranularity", time.Millisecond)
	viper.SetDefault("kernel.defaultpriority", 128)
	viper.SetDefault("kernel.retrymaxattempts", 3)
	viper.SetDefault("kernel.retryinitialbackoff", 1*time.Second)
	viper.SetDefault("kernel.retrymaxbackoff", 5*time.Minute)
	viper.SetDefault("kernel.retrybackofffactor", 2.0)
	viper.SetDefault("kernel.ratelimitrps", 1000)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", []string{})

	viper.SetDefault("loglevel", "info")
}
