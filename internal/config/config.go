// Package config loads the environment-driven configuration for the
// ingestion service.
package config

import "time"

// Config holds every tunable the ingestion service reads at startup.
type Config struct {
	MQTTBroker      string
	MQTTPort        int
	MQTTUsername    string
	MQTTPassword    string
	MQTTKeepalive   time.Duration
	MQTTClientID    string

	PCGSampleRate     int
	PCGTargetDuration time.Duration
	PCGMaxDuration    time.Duration

	ECGSampleRate  int
	ECGWindowSize  int
	ECGMaxDuration time.Duration

	StreamTimeout   time.Duration
	MetricsUpdateHz float64
	EnableDemoMode  bool

	ModelsDir         string
	PCGModelPath      string
	SeverityModelPath string
	ECGModelPath      string
	OnnxRuntimeLib    string

	GatewayDriver string // "memory" or "sqlite"
	SQLitePath    string

	ConfigFile string // optional YAML overlay path
}

// Default returns the configuration the service falls back to when no
// environment variable or overlay overrides it.
func Default() Config {
	return Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTKeepalive: 60 * time.Second,
		MQTTClientID:  "cardiosense-ingestd",

		PCGSampleRate:     22050,
		PCGTargetDuration: 10 * time.Second,
		PCGMaxDuration:    15 * time.Second,

		ECGSampleRate:  500,
		ECGWindowSize:  500,
		ECGMaxDuration: 60 * time.Second,

		StreamTimeout:   10 * time.Second,
		MetricsUpdateHz: 2.0,
		EnableDemoMode:  true,

		ModelsDir:         "models",
		PCGModelPath:      "models/pcg_classifier.onnx",
		SeverityModelPath: "models/murmur_severity.onnx",
		ECGModelPath:      "models/ecg_predictor.onnx",

		GatewayDriver: "memory",
		SQLitePath:    "cardiosense.db",
	}
}
