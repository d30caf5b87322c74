package session

import "time"

// Config holds the orchestrator's runtime-tunable parameters, each
// named directly after its spec.md §6 environment variable.
type Config struct {
	PCGMaxDuration  time.Duration // PCG_MAX_DURATION, default 15s
	ECGMaxDuration  time.Duration // ECG_MAX_DURATION, default 60s
	StreamTimeout   time.Duration // STREAM_TIMEOUT_SEC, default 10s
	SweepInterval   time.Duration // fixed at 5s per spec.md §4.8
	MetricsUpdateHz float64       // METRICS_UPDATE_HZ, default 2
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		PCGMaxDuration:  15 * time.Second,
		ECGMaxDuration:  60 * time.Second,
		StreamTimeout:   10 * time.Second,
		SweepInterval:   5 * time.Second,
		MetricsUpdateHz: 2.0,
	}
}

func (c Config) maxDuration(modality string) time.Duration {
	if modality == "pcg" {
		return c.PCGMaxDuration
	}
	return c.ECGMaxDuration
}
