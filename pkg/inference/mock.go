package inference

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Mock implements Upstream for testing.
type Mock struct {
	// SessionFunc is called when CreateRealtimeSession is invoked.
	SessionFunc func(ctx context.Context, model string) (json.RawMessage, error)

	// VisionFunc is called when Vision is invoked.
	VisionFunc func(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// ResponsesFunc is called when Responses is invoked.
	ResponsesFunc func(ctx context.Context, body []byte) (*RawResponse, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Arg    string
	Time   time.Time
}

// NewMock creates a new mock upstream with working defaults.
func NewMock() *Mock {
	return &Mock{
		SessionFunc: func(ctx context.Context, model string) (json.RawMessage, error) {
			return json.RawMessage(`{"id":"sess_mock","model":"` + model + `","client_secret":{"value":"ek_mock","expires_at":4102444800}}`), nil
		},
		VisionFunc: func(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
			return &VisionResponse{Content: "mock vision answer"}, nil
		},
		ResponsesFunc: func(ctx context.Context, body []byte) (*RawResponse, error) {
			return &RawResponse{
				StatusCode:  200,
				ContentType: "application/json",
				Body:        []byte(`{"output":[{"content":"mock answer"}]}`),
			}, nil
		},
		HealthFunc: func(ctx context.Context) error { return nil },
	}
}

func (m *Mock) record(method, arg string) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Arg: arg, Time: time.Now()})
	m.mu.Unlock()
}

// CreateRealtimeSession implements Upstream.
func (m *Mock) CreateRealtimeSession(ctx context.Context, model string) (json.RawMessage, error) {
	m.record("CreateRealtimeSession", model)
	return m.SessionFunc(ctx, model)
}

// Vision implements Upstream.
func (m *Mock) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	m.record("Vision", req.Prompt)
	return m.VisionFunc(ctx, req)
}

// Responses implements Upstream.
func (m *Mock) Responses(ctx context.Context, body []byte) (*RawResponse, error) {
	m.record("Responses", string(body))
	return m.ResponsesFunc(ctx, body)
}

// Health implements Upstream.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	return m.HealthFunc(ctx)
}

// Close implements Upstream.
func (m *Mock) Close() error {
	return nil
}

// Calls returns recorded invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

var _ Upstream = (*Mock)(nil)
