package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseViper() *viper.Viper {
	v := viper.New()
	v.Set("CLASH_ROYALE_API_KEY", "secret")
	v.Set("DB_URL", "postgres://localhost/duels")
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(baseViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "https://api.clashroyale.com/v1", cfg.ClashRoyaleApiUrl)
	assert.Equal(t, 60*time.Second, cfg.MonitorPollInterval)
	assert.Equal(t, 30*time.Minute, cfg.MonitorDeadline)
	assert.Empty(t, cfg.EventsSubscription)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromViperOverrides(t *testing.T) {
	v := baseViper()
	v.Set("PORT", "9090")
	v.Set("BASE_URL", "https://duels.example.com/")
	v.Set("MONITOR_POLL_INTERVAL", "15s")
	v.Set("MONITOR_DEADLINE", "10m")
	v.Set("STORE", "MEMORY")
	v.Set("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "https://duels.example.com", cfg.BaseUrl)
	assert.Equal(t, 15*time.Second, cfg.MonitorPollInterval)
	assert.Equal(t, 10*time.Minute, cfg.MonitorDeadline)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestFromViperRejectsInvalid(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"missing api key": func(v *viper.Viper) { v.Set("CLASH_ROYALE_API_KEY", "") },
		"missing db url":  func(v *viper.Viper) { v.Set("DB_URL", "") },
		"unknown store":   func(v *viper.Viper) { v.Set("STORE", "mongo") },
		"deadline too short": func(v *viper.Viper) {
			v.Set("MONITOR_POLL_INTERVAL", "1m")
			v.Set("MONITOR_DEADLINE", "30s")
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := baseViper()
			mutate(v)
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestFromViperMemoryStoreNeedsNoDb(t *testing.T) {
	v := viper.New()
	v.Set("CLASH_ROYALE_API_KEY", "secret")
	v.Set("STORE", StoreMemory)

	_, err := FromViper(v)
	assert.NoError(t, err)
}
