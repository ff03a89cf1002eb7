package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-state-reducer/internal/reducer"
	"github.com/feral-file/ff-state-reducer/internal/retry"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug       bool   `mapstructure:"debug"`
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadHost        string        `mapstructure:"read_host"`
	ReadPort        int           `mapstructure:"read_port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // e.g. "5m", "1h"
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // e.g. "10m"
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL              string        `mapstructure:"url"`
	StreamName       string        `mapstructure:"stream_name"`
	EntityStreamName string        `mapstructure:"entity_stream_name"`
	ConsumerName     string        `mapstructure:"consumer_name"`
	MaxReconnects    int           `mapstructure:"max_reconnects"`
	ReconnectWait    time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName   string        `mapstructure:"connection_name"`
	AckWait          time.Duration `mapstructure:"ack_wait"`
	MaxDeliver       int           `mapstructure:"max_deliver"`
}

// TemporalConfig holds Temporal configuration
type TemporalConfig struct {
	HostPort                           string        `mapstructure:"host_port"`
	Namespace                          string        `mapstructure:"namespace"`
	TaskQueue                          string        `mapstructure:"task_queue"`
	WorkflowRunTimeout                 time.Duration `mapstructure:"workflow_run_timeout"`
	ActivityTimeout                    time.Duration `mapstructure:"activity_timeout"`
	ActivityMaxAttempts                int32         `mapstructure:"activity_max_attempts"`
	MaxConcurrentActivityExecutionSize int           `mapstructure:"max_concurrent_activity_execution_size"`
	WorkerActivitiesPerSecond          float64       `mapstructure:"worker_activities_per_second"`
	MaxConcurrentActivityTaskPollers   int           `mapstructure:"max_concurrent_activity_task_pollers"`
}

// RedisConfig holds the snapshot cache connection
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"` // 0 keeps entries until the next change
}

// Enabled reports whether a redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// CompactionConfig mirrors reducer.CompactionConfig
type CompactionConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MinRun      int    `mapstructure:"min_run"`
	StableDepth uint64 `mapstructure:"stable_depth"`
}

// ReducerConfig holds the reduction engine and updater settings shared by every service
type ReducerConfig struct {
	MaxAttempts          int              `mapstructure:"max_attempts"`
	RetryInitialInterval time.Duration    `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration    `mapstructure:"retry_max_interval"`
	InverseRevert        bool             `mapstructure:"inverse_revert"`
	TombstonePolicy      string           `mapstructure:"tombstone_policy"`
	Parallelism          int              `mapstructure:"parallelism"`
	Compaction           CompactionConfig `mapstructure:"compaction"`
}

// RetryPolicy returns the optimistic retry policy
func (c ReducerConfig) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.RetryInitialInterval > 0 {
		p.InitialInterval = c.RetryInitialInterval
	}
	if c.RetryMaxInterval > 0 {
		p.MaxInterval = c.RetryMaxInterval
	}
	return p
}

// EngineConfig returns the feature flags for the reduction engines
func (c ReducerConfig) EngineConfig() reducer.Config {
	return reducer.Config{
		InverseRevert: c.InverseRevert,
		Compaction: reducer.CompactionConfig{
			Enabled:     c.Compaction.Enabled,
			MinRun:      c.Compaction.MinRun,
			StableDepth: c.Compaction.StableDepth,
		},
	}
}

// UpdaterConfig returns the updater configuration, rejecting unknown tombstone policies
func (c ReducerConfig) UpdaterConfig() (updater.Config, error) {
	policy, err := updater.ParseTombstonePolicy(c.TombstonePolicy)
	if err != nil {
		return updater.Config{}, err
	}
	return updater.Config{Retry: c.RetryPolicy(), Tombstone: policy}, nil
}

// ConsistencyConfig holds the consistency sweeper settings
type ConsistencyConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PassInterval time.Duration `mapstructure:"pass_interval"`
	Kinds        []string      `mapstructure:"kinds"`
	Worker       WorkerConfig  `mapstructure:"worker"`
}

// RateLimitConfig holds the API rate limiter settings
type RateLimitConfig struct {
	Enabled                 bool    `mapstructure:"enabled"`
	RequestsPerSecond       int     `mapstructure:"requests_per_second"`
	Burst                   int     `mapstructure:"burst"`
	RedisKeyPrefix          string  `mapstructure:"redis_key_prefix"`
	EnableLocalFallback     bool    `mapstructure:"enable_local_fallback"`
	LocalFallbackMultiplier float64 `mapstructure:"local_fallback_multiplier"`
}

// EventBridgeConfig holds configuration for event-bridge
type EventBridgeConfig struct {
	BaseConfig `mapstructure:",squash"`
	Worker     WorkerConfig   `mapstructure:"worker"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Temporal   TemporalConfig `mapstructure:"temporal"`
}

// WorkerCoreConfig holds configuration for worker-core
type WorkerCoreConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Temporal   TemporalConfig `mapstructure:"temporal"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Reducer    ReducerConfig  `mapstructure:"reducer"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Temporal   TemporalConfig  `mapstructure:"temporal"`
	NATS       NATSConfig      `mapstructure:"nats"`
	Redis      RedisConfig     `mapstructure:"redis"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Reducer    ReducerConfig   `mapstructure:"reducer"`
}

// SweeperConfig holds configuration for the sweeper program
type SweeperConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Reducer     ReducerConfig     `mapstructure:"reducer"`
	Consistency ConsistencyConfig `mapstructure:"consistency"`
}

// LoadEventBridgeConfig loads configuration for event-bridge
func LoadEventBridgeConfig(configFile string, envPath string) (*EventBridgeConfig, error) {
	v := configureViper("event-bridge", configFile, envPath)

	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setTemporalDefaults(v)
	v.SetDefault("nats.consumer_name", "event-bridge")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", 5)
	v.SetDefault("worker.pool_size", 16)
	v.SetDefault("worker.queue_size", 256)

	var cfg EventBridgeConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}
	if cfg.NATS.URL == "" {
		return nil, errors.New("nats.url is required")
	}

	return &cfg, nil
}

// LoadWorkerCoreConfig loads configuration for worker-core
func LoadWorkerCoreConfig(configFile string, envPath string) (*WorkerCoreConfig, error) {
	v := configureViper("worker-core", configFile, envPath)

	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setTemporalDefaults(v)
	setRedisDefaults(v)
	setReducerDefaults(v)

	var cfg WorkerCoreConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Reducer.UpdaterConfig(); err != nil {
		return nil, fmt.Errorf("invalid reducer config: %w", err)
	}

	return &cfg, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.redis_key_prefix", "ff:reducer:limiter:")
	v.SetDefault("rate_limit.enable_local_fallback", true)
	v.SetDefault("rate_limit.local_fallback_multiplier", 1.0)
	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setTemporalDefaults(v)
	setRedisDefaults(v)
	setReducerDefaults(v)

	var cfg APIConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Reducer.UpdaterConfig(); err != nil {
		return nil, fmt.Errorf("invalid reducer config: %w", err)
	}

	return &cfg, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setRedisDefaults(v)
	setReducerDefaults(v)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("consistency.batch_size", 100)
	v.SetDefault("consistency.pass_interval", "10m")
	v.SetDefault("consistency.worker.pool_size", 8)

	var cfg SweeperConfig
	if err := load(v, &cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}
	if _, err := cfg.Reducer.UpdaterConfig(); err != nil {
		return nil, fmt.Errorf("invalid reducer config: %w", err)
	}

	return &cfg, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
}

func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "ENTITY_EVENTS")
	v.SetDefault("nats.entity_stream_name", "ENTITY_CHANGES")
}

func setTemporalDefaults(v *viper.Viper) {
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "entity-reduction")
	v.SetDefault("temporal.workflow_run_timeout", "15m")
	v.SetDefault("temporal.activity_timeout", "2m")
	v.SetDefault("temporal.activity_max_attempts", 10)
	v.SetDefault("temporal.max_concurrent_activity_execution_size", 50)
	v.SetDefault("temporal.worker_activities_per_second", 50)
	v.SetDefault("temporal.max_concurrent_activity_task_pollers", 10)
}

func setRedisDefaults(v *viper.Viper) {
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "ff-reducer")
	v.SetDefault("redis.snapshot_ttl", "24h")
}

func setReducerDefaults(v *viper.Viper) {
	v.SetDefault("reducer.max_attempts", 5)
	v.SetDefault("reducer.retry_initial_interval", "20ms")
	v.SetDefault("reducer.retry_max_interval", "500ms")
	v.SetDefault("reducer.inverse_revert", false)
	v.SetDefault("reducer.tombstone_policy", "flag")
	v.SetDefault("reducer.parallelism", 8)
	v.SetDefault("reducer.compaction.enabled", false)
	v.SetDefault("reducer.compaction.min_run", 2)
	v.SetDefault("reducer.compaction.stable_depth", 12)
}

// load reads the config file when present and unmarshals into out.
// A missing config file is not an error; environment variables are used instead.
func load(v *viper.Viper, out any) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("FF_REDUCER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env vars for keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

var envKeys = []string{
	"debug",
	"sentry_dsn",
	"environment",
	// Database
	"database.host",
	"database.port",
	"database.read_host",
	"database.read_port",
	"database.user",
	"database.password",
	"database.dbname",
	"database.sslmode",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.conn_max_lifetime",
	"database.conn_max_idle_time",
	// NATS
	"nats.url",
	"nats.stream_name",
	"nats.entity_stream_name",
	"nats.consumer_name",
	"nats.max_reconnects",
	"nats.reconnect_wait",
	"nats.connection_name",
	"nats.ack_wait",
	"nats.max_deliver",
	// Temporal
	"temporal.host_port",
	"temporal.namespace",
	"temporal.task_queue",
	"temporal.workflow_run_timeout",
	"temporal.activity_timeout",
	"temporal.activity_max_attempts",
	"temporal.max_concurrent_activity_execution_size",
	"temporal.worker_activities_per_second",
	"temporal.max_concurrent_activity_task_pollers",
	// Redis
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.key_prefix",
	"redis.snapshot_ttl",
	// Server
	"server.host",
	"server.port",
	"server.read_timeout",
	"server.write_timeout",
	"server.idle_timeout",
	// Rate limit
	"rate_limit.enabled",
	"rate_limit.requests_per_second",
	"rate_limit.burst",
	"rate_limit.redis_key_prefix",
	"rate_limit.enable_local_fallback",
	"rate_limit.local_fallback_multiplier",
	// Reducer
	"reducer.max_attempts",
	"reducer.retry_initial_interval",
	"reducer.retry_max_interval",
	"reducer.inverse_revert",
	"reducer.tombstone_policy",
	"reducer.parallelism",
	"reducer.compaction.enabled",
	"reducer.compaction.min_run",
	"reducer.compaction.stable_depth",
	// Consistency sweeper
	"consistency.batch_size",
	"consistency.pass_interval",
	"consistency.kinds",
	"consistency.worker.pool_size",
	"consistency.worker.queue_size",
	// Worker pool
	"worker.pool_size",
	"worker.queue_size",
}

// loadEnv loads .env, .env.local and .env.<service>.local from envPath, later files winning
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile))
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ReadDSN returns the read-replica connection string, falling back to Port when ReadPort is unset
func (c *DatabaseConfig) ReadDSN() string {
	port := c.ReadPort
	if port == 0 {
		port = c.Port
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.ReadHost, port, c.User, c.Password, c.DBName, c.SSLMode)
}
