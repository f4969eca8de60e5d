package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.ModelPath)
	assert.Empty(t, cfg.CatalogPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "earthquake-events", cfg.KafkaSourceTopic)
	assert.Equal(t, "tsunami-predictions", cfg.KafkaSinkTopic)
	assert.Equal(t, "tsunami-scorer", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("TSUNAMI_MODEL_PATH", "/models/pipeline.gob")
	t.Setenv("TSUNAMI_CATALOG_PATH", "/data/quakes.csv")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092,")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/models/pipeline.gob", cfg.ModelPath)
	assert.Equal(t, "/data/quakes.csv", cfg.CatalogPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchFlushInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "soon"}, "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "SHUTDOWN_TIMEOUT"},
		{"flush interval", map[string]string{"BATCH_FLUSH_INTERVAL": "0s"}, "BATCH_FLUSH_INTERVAL"},
		{"batch size", map[string]string{"BATCH_SIZE": "0"}, "BATCH_SIZE"},
		{"kafka flag", map[string]string{"KAFKA_ENABLED": "maybe"}, "KAFKA_ENABLED"},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"kafka without model", map[string]string{"KAFKA_ENABLED": "true"}, "TSUNAMI_MODEL_PATH"},
		{"kafka without brokers", map[string]string{
			"KAFKA_ENABLED": "true", "TSUNAMI_MODEL_PATH": "m.gob", "KAFKA_BROKERS": " , ",
		}, "KAFKA_BROKERS"},
		{"kafka without sink", map[string]string{
			"KAFKA_ENABLED": "true", "TSUNAMI_MODEL_PATH": "m.gob", "KAFKA_SINK_TOPIC": "",
		}, "KAFKA_SINK_TOPIC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
