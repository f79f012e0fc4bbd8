package audioio

import (
	"context"
	"io"
)

// AudioChunk is one buffer of interleaved PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes fills the chunk from little-endian PCM16.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Duration returns the chunk length in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Source captures audio from one microphone.
type Source interface {
	// Start begins capture. Calling Start on a running source is a no-op.
	Start(ctx context.Context) error

	// Stop halts capture. It is safe to call Stop multiple times.
	Stop() error

	// Read returns the next chunk, or io.EOF once the source stops.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns the chunk channel. It is closed when the source stops.
	Stream() <-chan AudioChunk

	// Config returns the capture configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}

// SourceStats are capture counters.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
	Device      string `json:"device"`
}

// SourceWithStats is a Source that reports counters.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// SourceFactory opens a source for a device id.
type SourceFactory func(deviceID string) (Source, error)
