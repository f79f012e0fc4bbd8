// Package audioio captures microphone audio for the realtime session and
// the level meter.
//
// Backends:
//   - arecord: streams raw PCM16 from the ALSA arecord tool
//   - mock: synthetic silence or sine wave for tests and headless runs
package audioio

import (
	"fmt"
	"time"
)

// Backend names a capture implementation.
type Backend string

const (
	// BackendAuto picks arecord when it is installed, otherwise fails.
	BackendAuto Backend = "auto"
	// BackendARecord shells out to arecord.
	BackendARecord Backend = "arecord"
	// BackendMock generates synthetic audio.
	BackendMock Backend = "mock"
)

// Config holds capture settings.
type Config struct {
	// Backend selects the implementation. Default: auto.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate in Hz. Default: 24000, the realtime API input rate.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels. Default: 1.
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the chunk length. Default: 20ms.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is the capture device id, e.g. "default" or "plughw:1,0".
	// Empty means the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns the capture defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// WithDevice returns a copy of c capturing from device.
func (c Config) WithDevice(device string) Config {
	c.Device = device
	return c
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	switch c.Backend {
	case BackendAuto, BackendARecord, BackendMock, "":
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}

// BufferSize returns samples per channel per chunk.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the chunk size in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
