package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config lists the tunable parameters for the RoadSense hub server.
type Config struct {
	HTTPPort       int
	MQTTBrokerURL  string
	MQTTTopic      string
	DatabasePath   string
	LogLevel       string
	FleetPath      string
	BatchSize      int
	SampleInterval time.Duration
}

const (
	defaultHTTPPort       = 8080
	defaultMQTTTopic      = "vehicles/+/readings"
	defaultDatabasePath   = "data/roadsense.db"
	defaultLogLevel       = "info"
	defaultBatchSize      = 10
	defaultSampleInterval = time.Second
)

// Load derives configuration values from environment variables, falling back to defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:       defaultHTTPPort,
		MQTTTopic:      defaultMQTTTopic,
		DatabasePath:   defaultDatabasePath,
		LogLevel:       defaultLogLevel,
		BatchSize:      defaultBatchSize,
		SampleInterval: defaultSampleInterval,
	}

	if v := os.Getenv("ROADSENSE_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ROADSENSE_HTTP_PORT: %w", err)
		}
		cfg.HTTPPort = port
	}

	// Empty means MQTT ingest stays disabled.
	if v := os.Getenv("ROADSENSE_MQTT_BROKER"); v != "" {
		cfg.MQTTBrokerURL = v
	}

	if v := os.Getenv("ROADSENSE_MQTT_TOPIC"); v != "" {
		cfg.MQTTTopic = v
	}

	if v := os.Getenv("ROADSENSE_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if v := os.Getenv("ROADSENSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("ROADSENSE_FLEET_FILE"); v != "" {
		cfg.FleetPath = v
	}

	if v := os.Getenv("ROADSENSE_BATCH_SIZE"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return Config{}, fmt.Errorf("invalid ROADSENSE_BATCH_SIZE %q", v)
		}
		cfg.BatchSize = size
	}

	if v := os.Getenv("ROADSENSE_SAMPLE_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil || interval <= 0 {
			return Config{}, fmt.Errorf("invalid ROADSENSE_SAMPLE_INTERVAL %q", v)
		}
		cfg.SampleInterval = interval
	}

	return cfg, nil
}
