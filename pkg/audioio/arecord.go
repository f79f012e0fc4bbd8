package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

const arecordBinary = "arecord"

// ARecordSource captures PCM16 by streaming stdout of
// `arecord -t raw -f S16_LE`.
type ARecordSource struct {
	cfg    Config
	logger *slog.Logger
	device string

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	streamCh chan AudioChunk
	done     chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewARecordSource creates an arecord-backed source.
func NewARecordSource(cfg Config, logger *slog.Logger) (*ARecordSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	device := cfg.Device
	if device == "" {
		device = "default"
	}
	return &ARecordSource{
		cfg:      cfg,
		logger:   logger.With("component", "audioio.arecord", "device", device),
		device:   device,
		streamCh: make(chan AudioChunk, 10),
	}, nil
}

// Args returns the arecord command line used for capture.
func (s *ARecordSource) Args() []string {
	return []string{
		"-q",
		"-D", s.device,
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
	}
}

// Start launches arecord.
func (s *ARecordSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, arecordBinary, s.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("arecord stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start arecord: %w", err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.running = true
	s.streamCh = make(chan AudioChunk, 10)
	s.done = make(chan struct{})

	go s.readLoop(stdout, s.streamCh, s.done)

	s.logger.Info("audio capture started", "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *ARecordSource) readLoop(r io.Reader, out chan AudioChunk, done chan struct{}) {
	defer close(done)
	defer close(out)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Debug("arecord read ended", "error", err)
			}
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)

		select {
		case out <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			s.overruns.Add(1)
		}
	}
}

// Stop terminates arecord and waits for the reader to drain.
func (s *ARecordSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, cmd, done := s.cancel, s.cmd, s.done
	s.cmd, s.cancel = nil, nil
	s.mu.Unlock()

	cancel()
	<-done
	_ = cmd.Wait()

	s.logger.Info("audio capture stopped", "chunks", s.chunksRead.Load(), "overruns", s.overruns.Load())
	return nil
}

// Read returns the next chunk.
func (s *ARecordSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-s.Stream():
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the chunk channel.
func (s *ARecordSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the capture configuration.
func (s *ARecordSource) Config() Config {
	return s.cfg
}

// Name returns "arecord".
func (s *ARecordSource) Name() string {
	return string(BackendARecord)
}

// Close stops capture permanently.
func (s *ARecordSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns capture counters.
func (s *ARecordSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.Name(),
		Device:      s.device,
	}
}

var _ SourceWithStats = (*ARecordSource)(nil)
