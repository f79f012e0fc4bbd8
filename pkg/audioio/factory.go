package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// NewSource creates a capture source for cfg.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto || backend == "" {
		backend = detectBackend()
	}

	logger.Debug("creating audio source",
		"backend", backend,
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendARecord:
		return NewARecordSource(cfg, logger)
	default:
		return nil, fmt.Errorf("no audio backend available (install alsa-utils or set AUDIO_BACKEND=mock)")
	}
}

// Factory returns a SourceFactory that opens base with the given device.
func Factory(base Config, logger *slog.Logger) SourceFactory {
	return func(deviceID string) (Source, error) {
		return NewSource(base.WithDevice(deviceID), logger)
	}
}

func detectBackend() Backend {
	if _, err := exec.LookPath(arecordBinary); err == nil {
		return BackendARecord
	}
	return ""
}

// AvailableBackends lists backends usable on this machine.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if detectBackend() == BackendARecord {
		backends = append(backends, BackendARecord)
	}
	return backends
}
