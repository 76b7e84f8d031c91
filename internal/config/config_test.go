package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.RTConsumer.MaxConcurrentMessages)
	assert.Equal(t, "trade-forge.marketdata.candles.raw.v1", cfg.RTConsumer.Topic)
	assert.Equal(t, "trade-forge.backtesting.indicators.calculation-requested.v1", cfg.BatchConsumer.Topic)
	assert.Equal(t, "trade-forge.backtests.requests.v1", cfg.BacktestConsumer.Topic)
	assert.Equal(t, "trade-forge.market-collectors.tasks", cfg.CollectorConsumer.Topic)
	assert.Equal(t, "@every 1m", cfg.SchedulerCron)
	assert.Equal(t, []string{"1min"}, cfg.SchedulerTimeframes)
	assert.Equal(t, 50, cfg.QuotaDailyLimit)
	assert.Equal(t, 10, cfg.QuotaConcurrentLimit)
	assert.Equal(t, "8080", cfg.HealthPort)
	assert.Equal(t, "internal/repository/postgres/migrations", cfg.MigrationsDir)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HEALTH_PORT", "9090")
	t.Setenv("RT_CONSUMER_GROUP_ID", "tradeforge-rt-pipeline")
	t.Setenv("SCHEDULER_MARKET", "NSE")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HealthPort)
	assert.Equal(t, "tradeforge-rt-pipeline", cfg.RTConsumer.GroupID)
	assert.Equal(t, "NSE", cfg.SchedulerMarket)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}

func TestValidateRTConcurrency(t *testing.T) {
	t.Run("valid at one", func(t *testing.T) {
		cfg := &Config{RTConsumer: KafkaConsumerConfig{MaxConcurrentMessages: 1}}
		assert.NoError(t, cfg.ValidateRTConcurrency())
	})

	t.Run("rejects concurrency above one", func(t *testing.T) {
		cfg := &Config{RTConsumer: KafkaConsumerConfig{MaxConcurrentMessages: 4}}
		err := cfg.ValidateRTConcurrency()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be 1")
	})

	t.Run("rejects zero", func(t *testing.T) {
		cfg := &Config{RTConsumer: KafkaConsumerConfig{MaxConcurrentMessages: 0}}
		assert.Error(t, cfg.ValidateRTConcurrency())
	})
}
