package realtime

import (
	"context"
	"encoding/json"
	"sync"
)

// Mock is an in-memory Transport for tests.
type Mock struct {
	mu sync.Mutex

	status   Status
	muted    bool
	onStatus func(Status)
	onEvent  func(Event)

	// ConnectFunc runs between CONNECTING and CONNECTED. A non-nil error
	// returns the mock to DISCONNECTED.
	ConnectFunc func(ctx context.Context, opts ConnectOptions) error

	// SendEventFunc overrides SendEvent.
	SendEventFunc func(event any) error

	connects    []ConnectOptions
	sent        []any
	muteCalls   []bool
	interrupts  int
	disconnects int
	attempt     int
}

// NewMock creates a disconnected mock transport.
func NewMock() *Mock {
	return &Mock{}
}

// Connect implements Transport.
func (m *Mock) Connect(ctx context.Context, opts ConnectOptions) error {
	m.mu.Lock()
	if m.status != StatusDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.connects = append(m.connects, opts)
	m.attempt++
	id := m.attempt
	m.mu.Unlock()

	m.setStatus(StatusConnecting)

	if m.ConnectFunc != nil {
		if err := m.ConnectFunc(ctx, opts); err != nil {
			m.mu.Lock()
			current := m.attempt == id
			m.mu.Unlock()
			if current {
				m.setStatus(StatusDisconnected)
			}
			return err
		}
	}

	m.mu.Lock()
	if m.attempt != id {
		m.mu.Unlock()
		return ErrConnectAborted
	}
	m.mu.Unlock()
	m.setStatus(StatusConnected)
	return nil
}

// Disconnect implements Transport.
func (m *Mock) Disconnect() error {
	m.mu.Lock()
	m.disconnects++
	m.attempt++
	m.muted = false
	m.mu.Unlock()
	m.setStatus(StatusDisconnected)
	return nil
}

// SendEvent implements Transport.
func (m *Mock) SendEvent(event any) error {
	if m.SendEventFunc != nil {
		return m.SendEventFunc(event)
	}
	if _, err := encodeEvent(event); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusConnected {
		return ErrNotConnected
	}
	m.sent = append(m.sent, event)
	return nil
}

// Interrupt implements Transport.
func (m *Mock) Interrupt() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupts++
	return nil
}

// Mute implements Transport.
func (m *Mock) Mute(muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.muteCalls = append(m.muteCalls, muted)
	return nil
}

// Status implements Transport.
func (m *Mock) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// OnStatusChange implements Transport.
func (m *Mock) OnStatusChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// OnEvent implements Transport.
func (m *Mock) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = fn
}

func (m *Mock) setStatus(s Status) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	fn := m.onStatus
	m.mu.Unlock()
	if changed && fn != nil {
		fn(s)
	}
}

// Test helpers

// SimulateEvent delivers an event to the OnEvent callback.
func (m *Mock) SimulateEvent(e Event) {
	m.mu.Lock()
	fn := m.onEvent
	m.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// SimulateHandoff delivers a handoff to agent.
func (m *Mock) SimulateHandoff(agent string) {
	m.SimulateEvent(Event{Kind: EventHandoff, Agent: agent})
}

// SimulateDrop drops the connection as if the server closed it.
func (m *Mock) SimulateDrop() {
	m.mu.Lock()
	m.attempt++
	m.mu.Unlock()
	m.setStatus(StatusDisconnected)
}

// ConnectCalls returns the options of every Connect call.
func (m *Mock) ConnectCalls() []ConnectOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ConnectOptions(nil), m.connects...)
}

// Sent returns the events sent while connected.
func (m *Mock) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// SentTypes returns the "type" of each sent event.
func (m *Mock) SentTypes() []string {
	var types []string
	for _, ev := range m.Sent() {
		data, _ := json.Marshal(ev)
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &head)
		types = append(types, head.Type)
	}
	return types
}

// Muted reports the last Mute value.
func (m *Mock) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// MuteCalls returns every Mute argument in order.
func (m *Mock) MuteCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.muteCalls...)
}

// Interrupts returns how many times Interrupt was called.
func (m *Mock) Interrupts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupts
}

// Disconnects returns how many times Disconnect was called.
func (m *Mock) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects = nil
	m.sent = nil
	m.muteCalls = nil
	m.interrupts = 0
	m.disconnects = 0
}

var _ Transport = (*Mock)(nil)
