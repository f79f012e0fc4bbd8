package audioio

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
)

// Meter defaults.
const (
	DefaultBars      = 7
	DefaultGate      = 0.08
	DefaultSmoothing = 0.7
	// DefaultFullScale is the RMS treated as a full-scale level; speech
	// rarely exceeds it.
	DefaultFullScale = 0.35
)

// Reading is one meter update.
type Reading struct {
	// Level is the smoothed voice level, 0..1.
	Level float64
	// Bars are per-segment levels, 0..1, for a waveform display.
	Bars []float64
}

// MeterOption configures a Meter.
type MeterOption func(*Meter)

// WithMeterLogger sets the logger.
func WithMeterLogger(l *slog.Logger) MeterOption {
	return func(m *Meter) {
		if l != nil {
			m.logger = l.With("component", "audioio.meter")
		}
	}
}

// WithBars sets the number of waveform bars.
func WithBars(n int) MeterOption {
	return func(m *Meter) {
		if n > 0 {
			m.bars = n
		}
	}
}

// Meter turns microphone audio into a live level. At most one capture is
// live at a time; Start replaces any running capture.
type Meter struct {
	open   SourceFactory
	logger *slog.Logger
	bars   int

	mu      sync.Mutex
	src     Source
	cancel  context.CancelFunc
	done    chan struct{}
	device  string
	reading Reading
	onLevel func(Reading)
}

// NewMeter creates a meter that opens devices through open.
func NewMeter(open SourceFactory, opts ...MeterOption) *Meter {
	m := &Meter{
		open:   open,
		logger: slog.Default().With("component", "audioio.meter"),
		bars:   DefaultBars,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnLevel sets the callback for readings.
func (m *Meter) OnLevel(fn func(Reading)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLevel = fn
}

// Start begins metering deviceID, stopping any capture already running.
func (m *Meter) Start(ctx context.Context, deviceID string) error {
	m.Stop()

	if m.open == nil {
		return errors.New("audioio: meter has no source factory")
	}
	src, err := m.open(deviceID)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	if err := src.Start(runCtx); err != nil {
		cancel()
		src.Close()
		return err
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.src = src
	m.cancel = cancel
	m.done = done
	m.device = deviceID
	m.reading = Reading{Bars: make([]float64, m.bars)}
	m.mu.Unlock()

	go m.loop(runCtx, src, done)
	m.logger.Debug("meter started", "device", deviceID)
	return nil
}

func (m *Meter) loop(ctx context.Context, src Source, done chan struct{}) {
	defer close(done)

	var smooth float64
	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			return
		}
		bars := Bars(chunk.Samples, m.bars)
		level := gate(RMS(chunk.Samples)/DefaultFullScale, DefaultGate)
		smooth = smooth*DefaultSmoothing + level*(1-DefaultSmoothing)

		r := Reading{Level: smooth, Bars: bars}
		m.mu.Lock()
		m.reading = r
		fn := m.onLevel
		m.mu.Unlock()
		if fn != nil {
			fn(r)
		}
	}
}

// Stop ends metering. Safe to call when not running.
func (m *Meter) Stop() {
	m.mu.Lock()
	src, cancel, done := m.src, m.cancel, m.done
	m.src, m.cancel, m.done = nil, nil, nil
	m.device = ""
	m.reading = Reading{}
	m.mu.Unlock()

	if src == nil {
		return
	}
	cancel()
	src.Close()
	<-done
	m.logger.Debug("meter stopped")
}

// Active reports whether a capture is live.
func (m *Meter) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src != nil
}

// Device returns the metered device id.
func (m *Meter) Device() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device
}

// Reading returns the latest reading.
func (m *Meter) Reading() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reading
	r.Bars = append([]float64(nil), r.Bars...)
	return r
}

// Bars splits samples into n segments and returns each segment's level.
func Bars(samples []int16, n int) []float64 {
	out := make([]float64, n)
	if n == 0 || len(samples) < n {
		return out
	}
	size := len(samples) / n
	for i := range out {
		out[i] = math.Min(1, RMS(samples[i*size:(i+1)*size])/DefaultFullScale)
	}
	return out
}

func gate(v, threshold float64) float64 {
	v = math.Min(1, math.Max(0, v))
	if v < threshold {
		return 0
	}
	return v
}
