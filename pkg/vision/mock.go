package vision

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// MockCapturer implements Capturer with a fixed frame.
type MockCapturer struct {
	mu       sync.Mutex
	frame    image.Image
	openErr  error
	frameErr error
	opens    int
	stops    int
}

// NewMockCapturer creates a capturer returning a small solid frame.
func NewMockCapturer() *MockCapturer {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}
	return &MockCapturer{frame: img}
}

// SetFrame sets the next frame returned.
func (m *MockCapturer) SetFrame(img image.Image) {
	m.mu.Lock()
	m.frame = img
	m.mu.Unlock()
}

// SetOpenError makes Open fail.
func (m *MockCapturer) SetOpenError(err error) {
	m.mu.Lock()
	m.openErr = err
	m.mu.Unlock()
}

// SetFrameError makes Frame fail.
func (m *MockCapturer) SetFrameError(err error) {
	m.mu.Lock()
	m.frameErr = err
	m.mu.Unlock()
}

// Open implements Capturer.
func (m *MockCapturer) Open(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens++
	return &mockStream{m: m}, nil
}

// Opens returns how many streams were opened.
func (m *MockCapturer) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Stops returns how many streams were stopped.
func (m *MockCapturer) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

type mockStream struct {
	m    *MockCapturer
	once sync.Once
}

func (s *mockStream) Frame(ctx context.Context) (image.Image, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.frameErr != nil {
		return nil, s.m.frameErr
	}
	return s.m.frame, nil
}

func (s *mockStream) Stop() {
	s.once.Do(func() {
		s.m.mu.Lock()
		s.m.stops++
		s.m.mu.Unlock()
	})
}

var _ Capturer = (*MockCapturer)(nil)
