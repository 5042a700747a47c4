package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicEEG      string
	TopicGyro     string
	TopicEvent    string
	TopicExtend   string
	TopicExtendIn string

	// Headset transport
	SerialPort     string
	SerialBaudRate int
	UseSimulator   bool

	// Shared memory channel
	SegmentName           string
	CommandPollIntervalMS int

	// Persistence
	HistoryPath      string
	TrainingDataPath string
	ProfilePath      string

	// Classifier
	ClassifierEnabled       bool
	ClassifierMinSamples    int
	ClassifierConfidenceMin float64
	TrainTimeoutSeconds     int

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for the config singleton:
// InitGlobal sets it once, Get reads it under a shared lock.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns a Config prefilled with the values a bare install
// runs with; the config file overrides them.
func defaults() *Config {
	return &Config{
		MQTTClientIDProducer: "mindlink-producer",
		MQTTClientIDConsole:  "mindlink-console",
		MQTTClientIDWeb:      "mindlink-web",

		TopicEEG:      "mindlink/eeg",
		TopicGyro:     "mindlink/gyro",
		TopicEvent:    "mindlink/event",
		TopicExtend:   "mindlink/extend",
		TopicExtendIn: "mindlink/extend/in",

		SerialBaudRate: 57600,

		SegmentName:           "brainlink_data",
		CommandPollIntervalMS: 10,

		HistoryPath:      "history.json",
		TrainingDataPath: "training_data.json",
		ProfilePath:      "profiles.yaml",

		ClassifierMinSamples:    10,
		ClassifierConfidenceMin: 0.6,
		TrainTimeoutSeconds:     60,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_EEG":
		c.TopicEEG = value
	case "TOPIC_GYRO":
		c.TopicGyro = value
	case "TOPIC_EVENT":
		c.TopicEvent = value
	case "TOPIC_EXTEND":
		c.TopicExtend = value
	case "TOPIC_EXTEND_IN":
		c.TopicExtendIn = value

	// Headset transport
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate
	case "USE_SIMULATOR":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid USE_SIMULATOR %q: %w", value, err)
		}
		c.UseSimulator = enabled

	// Shared memory channel
	case "SHM_SEGMENT_NAME":
		c.SegmentName = value
	case "COMMAND_POLL_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid COMMAND_POLL_INTERVAL %q: %w", value, err)
		}
		if interval < 1 {
			return fmt.Errorf("COMMAND_POLL_INTERVAL must be >= 1 ms, got %d", interval)
		}
		c.CommandPollIntervalMS = interval

	// Persistence
	case "HISTORY_PATH":
		c.HistoryPath = value
	case "TRAINING_DATA_PATH":
		c.TrainingDataPath = value
	case "PROFILE_PATH":
		c.ProfilePath = value

	// Classifier
	case "CLASSIFIER_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid CLASSIFIER_ENABLED %q: %w", value, err)
		}
		c.ClassifierEnabled = enabled
	case "CLASSIFIER_MIN_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CLASSIFIER_MIN_SAMPLES %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("CLASSIFIER_MIN_SAMPLES must be >= 1, got %d", n)
		}
		c.ClassifierMinSamples = n
	case "CLASSIFIER_CONFIDENCE_MIN":
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid CLASSIFIER_CONFIDENCE_MIN %q: %w", value, err)
		}
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("CLASSIFIER_CONFIDENCE_MIN must be 0-1, got %g", threshold)
		}
		c.ClassifierConfidenceMin = threshold
	case "TRAIN_TIMEOUT_SECONDS":
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TRAIN_TIMEOUT_SECONDS %q: %w", value, err)
		}
		if seconds < 1 {
			return fmt.Errorf("TRAIN_TIMEOUT_SECONDS must be >= 1, got %d", seconds)
		}
		c.TrainTimeoutSeconds = seconds

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SerialPort == "" && !c.UseSimulator {
		return fmt.Errorf("SERIAL_PORT is required unless USE_SIMULATOR=true")
	}
	if c.SegmentName == "" {
		return fmt.Errorf("SHM_SEGMENT_NAME must not be empty")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Uses
// sync.Once so repeated calls are harmless.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
