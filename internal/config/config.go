// Package config loads the worker's configuration, grounded on the
// teacher's internal/trading/config.Config shape (one nested mapstructure
// per subsystem, loaded via viper, translated to sub-configs with
// json-marshal round trips for pkg/database and pkg/cache). Unlike the
// teacher, which reads a single application.yaml, this repo's subcommands
// run as independent worker processes and are configured primarily from
// the environment (viper.AutomaticEnv), per spec §6/§9.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tradeforge-core/pkg/cache"
	"tradeforge-core/pkg/database"
	"tradeforge-core/pkg/kafka"
	"tradeforge-core/pkg/upstream"
)

// KafkaConsumerConfig mirrors internal/platform/consumer.Config's
// tunables, kept as a separate mapstructure-bound type so it can be loaded
// per-subcommand (RT, batch, backtest-request, collector each bind their
// own topic/group/concurrency).
type KafkaConsumerConfig struct {
	Brokers               []string      `mapstructure:"brokers"`
	Topic                 string        `mapstructure:"topic"`
	GroupID               string        `mapstructure:"group_id"`
	MaxConcurrentMessages int           `mapstructure:"max_concurrent_messages"`
	HandlerTimeout        time.Duration `mapstructure:"handler_timeout"`
	SlowOpThreshold       time.Duration `mapstructure:"slow_op_threshold"`
	UseDLQ                bool          `mapstructure:"use_dlq"`
	ShutdownDrain         time.Duration `mapstructure:"shutdown_drain"`
}

// Config is the full worker configuration. Only the sections a given
// subcommand needs are populated/validated; see cmd/tradeforge-worker.
type Config struct {
	Postgres   database.PostgresConfig   `mapstructure:"postgres"`
	ClickHouse database.ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      cache.RedisConfig         `mapstructure:"redis"`
	Upstream   upstream.Config           `mapstructure:"upstream"`

	RTConsumer        KafkaConsumerConfig `mapstructure:"rt_consumer"`
	BatchConsumer     KafkaConsumerConfig `mapstructure:"batch_consumer"`
	BacktestConsumer  KafkaConsumerConfig `mapstructure:"backtest_consumer"`
	CollectorConsumer KafkaConsumerConfig `mapstructure:"collector_consumer"`

	SchedulerMarket     string   `mapstructure:"scheduler_market"`
	SchedulerCron       string   `mapstructure:"scheduler_cron"`
	SchedulerTimeframes []string `mapstructure:"scheduler_timeframes"`
	SchedulerStateSync  bool     `mapstructure:"scheduler_state_sync"`

	QuotaDailyLimit      int `mapstructure:"quota_daily_limit"`
	QuotaConcurrentLimit int `mapstructure:"quota_concurrent_limit"`

	HealthPort string `mapstructure:"health_port"`

	// MigrationsDir points at the golang-migrate source directory for the
	// Postgres relational schema. Empty disables the startup migration run
	// (e.g. for a read replica or a test harness managing its own schema).
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// Load reads configuration from environment variables (and an optional
// config file at configPath, if non-empty), applying defaults. It does not
// validate; the RT concurrency check is ValidateRTConcurrency, run by the
// consume-rt subcommand.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rt_consumer.max_concurrent_messages", 1)
	v.SetDefault("rt_consumer.handler_timeout", 30*time.Second)
	v.SetDefault("rt_consumer.topic", kafka.TopicCandlesRaw)

	v.SetDefault("batch_consumer.max_concurrent_messages", 8)
	v.SetDefault("batch_consumer.topic", kafka.TopicIndicatorCalcRequest)

	v.SetDefault("backtest_consumer.max_concurrent_messages", 8)
	v.SetDefault("backtest_consumer.topic", kafka.TopicBacktestRequests)

	v.SetDefault("collector_consumer.max_concurrent_messages", 4)
	v.SetDefault("collector_consumer.topic", kafka.TopicCollectorTasks)

	// AutomaticEnv only feeds Unmarshal for keys viper already knows, so
	// these keys get empty defaults to make them settable from the
	// environment.
	for _, c := range []string{"rt_consumer", "batch_consumer", "backtest_consumer", "collector_consumer"} {
		v.SetDefault(c+".group_id", "")
	}
	v.SetDefault("scheduler_market", "")

	v.SetDefault("upstream.requests_per_sec", 5)
	v.SetDefault("scheduler_cron", "@every 1m")
	v.SetDefault("scheduler_timeframes", []string{"1min"})
	v.SetDefault("quota_daily_limit", 50)
	v.SetDefault("quota_concurrent_limit", 10)
	v.SetDefault("health_port", "8080")
	v.SetDefault("migrations_dir", "internal/repository/postgres/migrations")
}

// ValidateRTConcurrency rejects a single-threaded-per-partition violation:
// the RT pipeline's correctness depends on strict ordering within a
// partition (spec §4.6), so MaxConcurrentMessages must be exactly 1.
func (c *Config) ValidateRTConcurrency() error {
	if c.RTConsumer.MaxConcurrentMessages != 1 {
		return fmt.Errorf("config: rt_consumer.max_concurrent_messages must be 1, got %d", c.RTConsumer.MaxConcurrentMessages)
	}
	return nil
}
