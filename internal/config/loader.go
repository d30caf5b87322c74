package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader resolves configuration from defaults, an optional YAML overlay
// file, and environment variables, in that precedence order (env wins).
// Lookup defaults to os.LookupEnv; tests inject a fake map instead.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load builds a Config by layering defaults, overlay file, and env vars.
func (l Loader) Load() (Config, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()

	if path, ok := lookup("CARDIOSENSE_CONFIG_FILE"); ok && path != "" {
		cfg.ConfigFile = path
		if err := applyYAMLOverlay(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("loading config overlay %s: %w", path, err)
		}
	}

	overrideString(lookup, "MQTT_BROKER", &cfg.MQTTBroker)
	overrideInt(lookup, "MQTT_PORT", &cfg.MQTTPort)
	overrideString(lookup, "MQTT_USERNAME", &cfg.MQTTUsername)
	overrideString(lookup, "MQTT_PASSWORD", &cfg.MQTTPassword)
	overrideDuration(lookup, "MQTT_KEEPALIVE", &cfg.MQTTKeepalive)

	overrideInt(lookup, "PCG_SAMPLE_RATE", &cfg.PCGSampleRate)
	overrideDuration(lookup, "PCG_TARGET_DURATION", &cfg.PCGTargetDuration)
	overrideDuration(lookup, "PCG_MAX_DURATION", &cfg.PCGMaxDuration)

	overrideInt(lookup, "ECG_SAMPLE_RATE", &cfg.ECGSampleRate)
	overrideInt(lookup, "ECG_WINDOW_SIZE", &cfg.ECGWindowSize)
	overrideDuration(lookup, "ECG_MAX_DURATION", &cfg.ECGMaxDuration)

	overrideDuration(lookup, "STREAM_TIMEOUT_SEC", &cfg.StreamTimeout)
	overrideFloat(lookup, "METRICS_UPDATE_HZ", &cfg.MetricsUpdateHz)
	overrideBool(lookup, "ENABLE_DEMO_MODE", &cfg.EnableDemoMode)

	overrideString(lookup, "MODELS_DIR", &cfg.ModelsDir)
	cfg.PCGModelPath = filepath.Join(cfg.ModelsDir, "pcg_classifier.onnx")
	cfg.SeverityModelPath = filepath.Join(cfg.ModelsDir, "murmur_severity.onnx")
	cfg.ECGModelPath = filepath.Join(cfg.ModelsDir, "ecg_predictor.onnx")
	overrideString(lookup, "PCG_MODEL_PATH", &cfg.PCGModelPath)
	overrideString(lookup, "SEVERITY_MODEL_PATH", &cfg.SeverityModelPath)
	overrideString(lookup, "ECG_MODEL_PATH", &cfg.ECGModelPath)
	overrideString(lookup, "ONNX_RUNTIME_LIB_PATH", &cfg.OnnxRuntimeLib)

	overrideString(lookup, "GATEWAY_DRIVER", &cfg.GatewayDriver)
	overrideString(lookup, "SQLITE_PATH", &cfg.SQLitePath)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make the service meaningless.
func (c Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("config: MQTT_BROKER must not be empty")
	}
	if c.PCGSampleRate <= 0 || c.ECGSampleRate <= 0 {
		return fmt.Errorf("config: sample rates must be positive")
	}
	if c.MetricsUpdateHz <= 0 {
		return fmt.Errorf("config: METRICS_UPDATE_HZ must be positive")
	}
	if c.GatewayDriver != "memory" && c.GatewayDriver != "sqlite" {
		return fmt.Errorf("config: GATEWAY_DRIVER must be 'memory' or 'sqlite', got %q", c.GatewayDriver)
	}
	return nil
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay map[string]any
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	// The overlay uses the same keys as the environment variables, so a
	// single checked-in file can replace a long env-var list.
	for k, v := range overlay {
		s := fmt.Sprintf("%v", v)
		applyOneOverride(cfg, k, s)
	}
	return nil
}

func applyOneOverride(cfg *Config, key, val string) {
	lookup := func(string) (string, bool) { return val, true }
	switch key {
	case "MQTT_BROKER":
		overrideString(lookup, key, &cfg.MQTTBroker)
	case "MQTT_PORT":
		overrideInt(lookup, key, &cfg.MQTTPort)
	case "MQTT_USERNAME":
		overrideString(lookup, key, &cfg.MQTTUsername)
	case "MQTT_PASSWORD":
		overrideString(lookup, key, &cfg.MQTTPassword)
	case "MQTT_KEEPALIVE":
		overrideDuration(lookup, key, &cfg.MQTTKeepalive)
	case "PCG_SAMPLE_RATE":
		overrideInt(lookup, key, &cfg.PCGSampleRate)
	case "PCG_TARGET_DURATION":
		overrideDuration(lookup, key, &cfg.PCGTargetDuration)
	case "PCG_MAX_DURATION":
		overrideDuration(lookup, key, &cfg.PCGMaxDuration)
	case "ECG_SAMPLE_RATE":
		overrideInt(lookup, key, &cfg.ECGSampleRate)
	case "ECG_WINDOW_SIZE":
		overrideInt(lookup, key, &cfg.ECGWindowSize)
	case "ECG_MAX_DURATION":
		overrideDuration(lookup, key, &cfg.ECGMaxDuration)
	case "STREAM_TIMEOUT_SEC":
		overrideDuration(lookup, key, &cfg.StreamTimeout)
	case "METRICS_UPDATE_HZ":
		overrideFloat(lookup, key, &cfg.MetricsUpdateHz)
	case "ENABLE_DEMO_MODE":
		overrideBool(lookup, key, &cfg.EnableDemoMode)
	case "MODELS_DIR":
		overrideString(lookup, key, &cfg.ModelsDir)
	case "GATEWAY_DRIVER":
		overrideString(lookup, key, &cfg.GatewayDriver)
	case "SQLITE_PATH":
		overrideString(lookup, key, &cfg.SQLitePath)
	}
}

func overrideString(lookup func(string) (string, bool), key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func overrideInt(lookup func(string) (string, bool), key string, dst *int) {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, dst *float64) {
	if v, ok := lookup(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func overrideBool(lookup func(string) (string, bool), key string, dst *bool) {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// overrideDuration parses a plain integer/float as seconds, matching how
// the spec's env vars (STREAM_TIMEOUT_SEC, PCG_MAX_DURATION, ...) are
// expressed, and stores the result as a time.Duration.
func overrideDuration(lookup func(string) (string, bool), key string, dst *time.Duration) {
	if v, ok := lookup(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(f * float64(time.Second))
		}
	}
}
